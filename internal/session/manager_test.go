package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSetAndRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(config.Config{Session: config.SessionConfig{CookieSecure: true}})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	m.Set(c, "token-value", now.Add(10*time.Minute))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, 600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "token-value"})
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = req
	token, ok := m.ReadToken(c2)
	assert.True(t, ok)
	assert.Equal(t, "token-value", token)
}
