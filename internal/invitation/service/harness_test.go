package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	auditrepository "github.com/smallbiznis/identity/internal/audit/repository"
	auditservice "github.com/smallbiznis/identity/internal/audit/service"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/clock"
	codedomain "github.com/smallbiznis/identity/internal/codestore/domain"
	coderepository "github.com/smallbiznis/identity/internal/codestore/repository"
	codeservice "github.com/smallbiznis/identity/internal/codestore/service"
	"github.com/smallbiznis/identity/internal/config"
	idpdomain "github.com/smallbiznis/identity/internal/identityprovider/domain"
	idprepository "github.com/smallbiznis/identity/internal/identityprovider/repository"
	idpservice "github.com/smallbiznis/identity/internal/identityprovider/service"
	"github.com/smallbiznis/identity/internal/invitation/domain"
	"github.com/smallbiznis/identity/internal/notification"
	"github.com/smallbiznis/identity/internal/passwordpolicy"
	"github.com/smallbiznis/identity/internal/principal"
	userdomain "github.com/smallbiznis/identity/internal/user/domain"
	"github.com/smallbiznis/identity/internal/user/password"
	userrepository "github.com/smallbiznis/identity/internal/user/repository"
	userservice "github.com/smallbiznis/identity/internal/user/service"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testRedirect = "https://app.example.com/welcome"

type sentMessage struct {
	to      []string
	subject string
	body    string
}

type recordingProvider struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (p *recordingProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{to: to, subject: subject, body: htmlBody})
	return nil
}

func (p *recordingProvider) messages() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}

type harness struct {
	cfg          config.Config
	db           *gorm.DB
	clock        *clock.FakeClock
	hasher       *password.Hasher
	users        userdomain.Service
	codes        codedomain.Service
	providers    idpdomain.Service
	audit        auditdomain.Service
	email        *recordingProvider
	issuer       domain.Issuer
	orchestrator domain.Orchestrator
	inviter      *principal.Principal
}

type harnessOption func(*config.Config, *passwordpolicy.Policy)

func withBrand(brand string) harnessOption {
	return func(cfg *config.Config, _ *passwordpolicy.Policy) { cfg.Invitation.Brand = brand }
}

func withPolicy(p passwordpolicy.Policy) harnessOption {
	return func(_ *config.Config, policy *passwordpolicy.Policy) { *policy = p }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	conn, err := db.NewTest(t.Name(),
		&userdomain.User{},
		&codedomain.ExpiringCode{},
		&idpdomain.Provider{},
		&auditdomain.AuditLog{},
	)
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		DefaultZoneID: "uaa",
		Invitation: config.InvitationConfig{
			Brand:           "oss",
			BaseURL:         "https://login.example.com",
			IssueTTL:        365 * 24 * time.Hour,
			SessionTTL:      10 * time.Minute,
			DefaultRedirect: "/home",
		},
	}
	policy := passwordpolicy.DefaultPolicy()
	for _, opt := range opts {
		opt(&cfg, &policy)
	}

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	hasher := password.NewHasher(password.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	users := userservice.New(userservice.Params{
		Log:    log,
		Repo:   userrepository.New(conn),
		GenID:  node,
		Clock:  clk,
		Hasher: hasher,
	})
	codes := codeservice.New(codeservice.Params{
		Log:   log,
		Repo:  coderepository.NewGorm(conn),
		Clock: clk,
	})
	providers := idpservice.New(idpservice.Params{
		Log:   log,
		Repo:  idprepository.New(conn),
		GenID: node,
		Clock: clk,
	})
	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: clk,
	})

	ctx := context.Background()
	for _, reg := range []idpdomain.RegisterRequest{
		{ZoneID: "uaa", OriginKey: "uaa", Type: idpdomain.KindUAA, Active: true},
		{ZoneID: "uaa", OriginKey: "corp-saml", Type: idpdomain.KindSAML, Active: true},
		{ZoneID: "uaa", OriginKey: "corp-ldap", Type: idpdomain.KindLDAP, Active: true},
		{ZoneID: "uaa", OriginKey: "github", Type: idpdomain.KindOIDC, Active: true},
	} {
		_, err := providers.Register(ctx, reg)
		require.NoError(t, err)
	}

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer, AuditSvc: audit})

	email := &recordingProvider{}
	notifier := notification.New(notification.Params{Log: log, Provider: email})

	issuer := NewIssuer(IssuerParams{
		Log:      log,
		Config:   cfg,
		Users:    users,
		Codes:    codes,
		Notifier: notifier,
		Authz:    authz,
		Audit:    audit,
	})
	orchestrator := NewOrchestrator(OrchestratorParams{
		Log:       log,
		Config:    cfg,
		Codes:     codes,
		Users:     users,
		Providers: providers,
		Policy:    passwordpolicy.NewValidator(passwordpolicy.NewStaticHolder(policy)),
		Audit:     audit,
	})

	inviter := principal.NewAuthenticated(principal.Identity{
		UserID:   "1000",
		Username: "admin@example.com",
		Email:    "admin@example.com",
		Origin:   "uaa",
		ZoneID:   "uaa",
	})
	inviter.Authorities = append(inviter.Authorities, principal.AuthorityInvite)

	return &harness{
		cfg:          cfg,
		db:           conn,
		clock:        clk,
		hasher:       hasher,
		users:        users,
		codes:        codes,
		providers:    providers,
		audit:        audit,
		email:        email,
		issuer:       issuer,
		orchestrator: orchestrator,
		inviter:      &inviter,
	}
}

func (h *harness) invite(t *testing.T, email, origin, redirect string) *domain.Invitation {
	t.Helper()
	invitation, err := h.issuer.Invite(context.Background(), domain.InviteRequest{
		Email:       email,
		RedirectURI: redirect,
		Origin:      origin,
		ZoneID:      "uaa",
		Inviter:     h.inviter,
	})
	require.NoError(t, err)
	return invitation
}

func (h *harness) storedCodes(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&codedomain.ExpiringCode{}).Count(&count).Error)
	return count
}

func (h *harness) auditActions(t *testing.T, action string) []auditdomain.AuditLog {
	t.Helper()
	resp, err := h.audit.List(context.Background(), auditdomain.ListAuditLogRequest{
		ZoneID: "uaa",
		Action: action,
	})
	require.NoError(t, err)
	return resp.AuditLogs
}
