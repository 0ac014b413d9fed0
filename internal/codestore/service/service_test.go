package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/codestore/domain"
	"github.com/smallbiznis/identity/internal/codestore/repository"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest(t.Name(), &domain.ExpiringCode{})
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		Log:     zap.NewNop(),
		Repo:    repository.NewGorm(conn),
		Clock:   clk,
		Metrics: metrics.New(prometheus.NewRegistry(), metrics.Config{}),
	})
	return svc, clk
}

func TestGenerateProducesUnguessableCode(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.Generate(ctx, domain.GenerateRequest{Data: "a", TTL: time.Minute})
	require.NoError(t, err)
	second, err := svc.Generate(ctx, domain.GenerateRequest{Data: "a", TTL: time.Minute})
	require.NoError(t, err)

	assert.Len(t, first.Code, 43)
	assert.NotEqual(t, first.Code, second.Code)
	assert.True(t, first.ExpiresAt.Equal(clk.Now().Add(time.Minute)))
}

func TestGenerateRejectsNonPositiveTTL(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Generate(context.Background(), domain.GenerateRequest{Data: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidTTL)
}

func TestRetrieveIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Generate(ctx, domain.GenerateRequest{Data: `{"user_id":"7"}`, TTL: time.Hour})
	require.NoError(t, err)

	got, err := svc.Retrieve(ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, `{"user_id":"7"}`, got.Data)

	_, err = svc.Retrieve(ctx, code.Code)
	assert.ErrorIs(t, err, domain.ErrCodeExpiredOrUnknown)
}

func TestRetrieveAtExpiryFails(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.Generate(ctx, domain.GenerateRequest{Data: "x", TTL: 10 * time.Minute})
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	_, err = svc.Retrieve(ctx, code.Code)
	assert.ErrorIs(t, err, domain.ErrCodeExpiredOrUnknown)
}

func TestRetrieveJustBeforeExpirySucceeds(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.Generate(ctx, domain.GenerateRequest{Data: "x", TTL: 10 * time.Minute})
	require.NoError(t, err)

	clk.Advance(10*time.Minute - time.Second)
	_, err = svc.Retrieve(ctx, code.Code)
	assert.NoError(t, err)
}

func TestRetrieveUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Retrieve(context.Background(), "never-issued")
	assert.ErrorIs(t, err, domain.ErrCodeExpiredOrUnknown)

	_, err = svc.Retrieve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrCodeExpiredOrUnknown)
}

func TestExpireCodesSweepsOnlyExpired(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, domain.GenerateRequest{Data: "short", TTL: time.Minute})
	require.NoError(t, err)
	long, err := svc.Generate(ctx, domain.GenerateRequest{Data: "long", TTL: time.Hour})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	n, err := svc.ExpireCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Retrieve(ctx, long.Code)
	assert.NoError(t, err)
}
