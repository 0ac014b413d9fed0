package cache

import (
	"testing"
	"time"

	"github.com/smallbiznis/identity/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, int](clk.Now)

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clk.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheIgnoresNonPositiveTTL(t *testing.T) {
	c := NewTTLCache[string, int](nil)
	c.Set("a", 1, 0)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCachePurge(t *testing.T) {
	c := NewTTLCache[string, string](nil)
	c.Set("a", "x", time.Hour)
	c.Set("b", "y", time.Hour)

	c.Purge()

	_, ok := c.Get("a")
	assert.False(t, ok)
}
