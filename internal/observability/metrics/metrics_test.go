package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordInvitationCounters(t *testing.T) {
	m := New(prometheus.NewRegistry(), Config{ServiceName: "identity", Environment: "test"})

	m.RecordInvitationIssued(IssueOutcomeNew)
	m.RecordInvitationIssued(IssueOutcomeNew)
	m.RecordInvitationAccepted(AcceptPathAutomatic)
	m.RecordAcceptanceFailure("")
	m.RecordCodeRedemption("database", RedeemResultExpired)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.invitationsIssued.WithLabelValues(IssueOutcomeNew)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invitationsAccepted.WithLabelValues(AcceptPathAutomatic)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.acceptanceFailures.WithLabelValues("unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.codeRedemptions.WithLabelValues("database", RedeemResultExpired)))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordInvitationIssued(IssueOutcomeFailed)
		m.RecordNotificationError()
		m.RecordRateLimitDenied("/invitations/accept.do", "client-rate")
		m.RecordJobRun("purge_sessions", JobOutcomeOK, time.Second)
		m.RecordPurged("purge_sessions", 3)
	})
}

func TestGinMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry(), Config{})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/invitations/accept", func(c *gin.Context) { c.Status(http.StatusUnprocessableEntity) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invitations/accept?code=x", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/invitations/accept", "422")))
}

func TestRecordJobRun(t *testing.T) {
	m := New(prometheus.NewRegistry(), Config{})

	m.RecordJobRun("purge_codes", JobOutcomeTimeout, 30*time.Second)
	m.RecordPurged("purge_codes", 4)
	m.RecordPurged("purge_codes", 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("purge_codes", JobOutcomeTimeout)))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.jobPurged.WithLabelValues("purge_codes")))
}
