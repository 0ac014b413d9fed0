package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/audit/auditcontext"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/audit/repository"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest(t.Name(), &auditdomain.AuditLog{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	}), clk
}

func TestAuditLogRecordsRequestMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := auditcontext.WithRequestMetadata(context.Background(), "req-1", "10.0.0.1", "curl/8")
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), "7")

	target := "42"
	err := svc.AuditLog(ctx, "uaa", "", nil, auditdomain.ActionInvitationIssued, "user", &target, map[string]any{"email": "alice@example.com"})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{ZoneID: "uaa"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "7", *entry.ActorID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "alice@example.com", entry.Metadata["email"])
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), "uaa", "system", nil, " ", "user", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, "uaa", "system", nil, auditdomain.ActionInvitationAccepted, "user", nil, nil))
		clk.Advance(time.Second)
	}
	require.NoError(t, svc.AuditLog(ctx, "other", "system", nil, auditdomain.ActionInvitationAccepted, "user", nil, nil))

	req := auditdomain.ListAuditLogRequest{ZoneID: "uaa"}
	req.PageSize = 2
	first, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)

	req.PageToken = first.NextPageToken
	second, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	req.PageToken = "not-a-token"
	_, err = svc.List(ctx, req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func TestAuditLogMasksSensitiveMetadata(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.AuditLog(context.Background(), "uaa", "system", nil, auditdomain.ActionInvitationPresented, "user", nil, map[string]any{
		"code":   "Xk29a7bQwxyz",
		"origin": "uaa",
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{ZoneID: "uaa"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "****wxyz", resp.AuditLogs[0].Metadata["code"])
	assert.Equal(t, "uaa", resp.AuditLogs[0].Metadata["origin"])
}
