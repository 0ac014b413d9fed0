package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/identity/internal/clock"
	codedomain "github.com/smallbiznis/identity/internal/codestore/domain"
	coderepository "github.com/smallbiznis/identity/internal/codestore/repository"
	codeservice "github.com/smallbiznis/identity/internal/codestore/service"
	"github.com/smallbiznis/identity/internal/config"
	obsmetrics "github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/principal"
	sessiondomain "github.com/smallbiznis/identity/internal/session/domain"
	sessionrepository "github.com/smallbiznis/identity/internal/session/repository"
	sessionservice "github.com/smallbiznis/identity/internal/session/service"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	sched    *Scheduler
	clock    *clock.FakeClock
	codes    codedomain.Service
	sessions sessiondomain.Service
	registry *prometheus.Registry
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	conn, err := db.NewTest(t.Name(), &codedomain.ExpiringCode{}, &sessiondomain.Session{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	registry := prometheus.NewRegistry()
	metrics := obsmetrics.New(registry, obsmetrics.Config{ServiceName: "identity", Environment: "test"})

	codes := codeservice.New(codeservice.Params{
		Log:   log,
		Repo:  coderepository.NewGorm(conn),
		Clock: clk,
	})
	sessions := sessionservice.New(sessionservice.Params{
		Log:   log,
		Repo:  sessionrepository.New(conn),
		GenID: node,
		Clock: clk,
		Config: config.Config{
			Invitation: config.InvitationConfig{SessionTTL: 10 * time.Minute},
			Session:    config.SessionConfig{TTL: 12 * time.Hour},
		},
	})

	sched, err := New(Params{
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Codes:    codes,
		Sessions: sessions,
		Metrics:  metrics,
		Config:   cfg,
	})
	require.NoError(t, err)

	return &fixture{sched: sched, clock: clk, codes: codes, sessions: sessions, registry: registry}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOncePurgesExpiredState(t *testing.T) {
	f := newFixture(t, Config{SessionRetention: time.Hour})
	ctx := context.Background()

	short, err := f.codes.Generate(ctx, codedomain.GenerateRequest{Data: "{}", TTL: time.Minute, Intent: "test"})
	require.NoError(t, err)
	long, err := f.codes.Generate(ctx, codedomain.GenerateRequest{Data: "{}", TTL: 24 * time.Hour, Intent: "test"})
	require.NoError(t, err)

	invited, err := f.sessions.Start(ctx, sessiondomain.StartRequest{Principal: principal.NewInvited("42", "a@example.com", "uaa", "uaa")})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))

	_, err = f.codes.Retrieve(ctx, short.Code)
	assert.ErrorIs(t, err, codedomain.ErrCodeExpiredOrUnknown)
	got, err := f.codes.Retrieve(ctx, long.Code)
	require.NoError(t, err)
	assert.Equal(t, long.Code, got.Code)

	_, err = f.sessions.Authenticate(ctx, invited.RawToken)
	assert.ErrorIs(t, err, sessiondomain.ErrInvalidSession)

	assert.Equal(t, float64(1), counterValue(t, f.registry, "identity_scheduler_purged_rows_total", JobPurgeSessions))
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{" PURGE_CODES "}})
	ctx := context.Background()

	_, err := f.sessions.Start(ctx, sessiondomain.StartRequest{Principal: principal.NewInvited("42", "a@example.com", "uaa", "uaa")})
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)

	assert.True(t, f.sched.isJobEnabled(JobPurgeCodes))
	assert.False(t, f.sched.isJobEnabled(JobPurgeSessions))
	require.NoError(t, f.sched.RunOnce(ctx))

	purged, err := f.sessions.Purge(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.sched.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestRunJobWrapsFailures(t *testing.T) {
	f := newFixture(t, Config{})
	boom := errors.New("boom")

	err := f.sched.runJob(context.Background(), "failing_job", time.Second, func(ctx context.Context) error {
		run := jobRunFromContext(ctx)
		require.NotNil(t, run)
		assert.Equal(t, "failing_job", run.job)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing_job")
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{SessionRetention: -time.Second, EnabledJobs: []string{"", " purge_codes "}}.withDefaults()

	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionRetention)
	assert.Equal(t, []string{"purge_codes"}, cfg.EnabledJobs)
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, job string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{job=%q} not found", name, job)
	return 0
}
