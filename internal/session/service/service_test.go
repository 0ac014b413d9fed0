package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/principal"
	"github.com/smallbiznis/identity/internal/session/domain"
	"github.com/smallbiznis/identity/internal/session/repository"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest(t.Name(), &domain.Session{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.Config{
		Invitation: config.InvitationConfig{SessionTTL: 10 * time.Minute},
		Session:    config.SessionConfig{TTL: 12 * time.Hour},
	}
	return New(Params{
		Log:    zap.NewNop(),
		Repo:   repository.New(conn),
		GenID:  node,
		Clock:  clk,
		Config: cfg,
	}), clk
}

func TestStartAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	invited := principal.NewInvited("42", "alice@example.com", "uaa", "uaa")
	started, err := svc.Start(ctx, domain.StartRequest{Principal: invited})
	require.NoError(t, err)
	assert.NotEmpty(t, started.RawToken)

	session, err := svc.Authenticate(ctx, started.RawToken)
	require.NoError(t, err)
	got := PrincipalOf(session)
	assert.Equal(t, principal.KindInvited, got.Kind)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, []string{principal.AuthorityInvited}, got.Authorities)
}

func TestInvitedSessionExpiresWithCode(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, domain.StartRequest{Principal: principal.NewInvited("42", "a@example.com", "uaa", "uaa")})
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	_, err = svc.Authenticate(ctx, started.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestRotateRevokesPreviousToken(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.Start(ctx, domain.StartRequest{Principal: principal.NewInvited("42", "a@example.com", "uaa", "uaa")})
	require.NoError(t, err)

	authenticated := principal.NewAuthenticated(principal.Identity{UserID: "42", Username: "a@example.com", Email: "a@example.com", Origin: "uaa", ZoneID: "uaa"})
	second, err := svc.Rotate(ctx, first.RawToken, domain.StartRequest{Principal: authenticated})
	require.NoError(t, err)
	assert.NotEqual(t, first.RawToken, second.RawToken)

	_, err = svc.Authenticate(ctx, first.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)

	// authenticated sessions outlive the invitation window
	clk.Advance(time.Hour)
	session, err := svc.Authenticate(ctx, second.RawToken)
	require.NoError(t, err)
	assert.Equal(t, principal.KindAuthenticated, PrincipalOf(session).Kind)
}

func TestAuthenticateUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	_, err = svc.Authenticate(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestPurgeRemovesEndedSessions(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	invited, err := svc.Start(ctx, domain.StartRequest{Principal: principal.NewInvited("42", "a@example.com", "uaa", "uaa")})
	require.NoError(t, err)
	user := principal.NewAuthenticated(principal.Identity{UserID: "7", Email: "b@example.com", Origin: "uaa", ZoneID: "uaa"})
	live, err := svc.Start(ctx, domain.StartRequest{Principal: user})
	require.NoError(t, err)

	// within retention nothing goes
	clk.Advance(15 * time.Minute)
	purged, err := svc.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	clk.Advance(time.Hour)
	purged, err = svc.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = svc.Authenticate(ctx, invited.RawToken)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
	_, err = svc.Authenticate(ctx, live.RawToken)
	require.NoError(t, err)
}
