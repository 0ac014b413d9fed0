package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	codedomain "github.com/smallbiznis/identity/internal/codestore/domain"
	"github.com/smallbiznis/identity/internal/config"
	idpdomain "github.com/smallbiznis/identity/internal/identityprovider/domain"
	"github.com/smallbiznis/identity/internal/invitation/domain"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/observability/tracing"
	"github.com/smallbiznis/identity/internal/passwordpolicy"
	"github.com/smallbiznis/identity/internal/principal"
	userdomain "github.com/smallbiznis/identity/internal/user/domain"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"github.com/smallbiznis/identity/pkg/zonectx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = tracing.Tracer("identity/invitation")

type OrchestratorParams struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	Codes     codedomain.Service
	Users     userdomain.Service
	Providers idpdomain.Service
	Policy    passwordpolicy.Validator
	Audit     auditdomain.Service `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
}

type Orchestrator struct {
	log       *zap.Logger
	codes     codedomain.Service
	users     userdomain.Service
	providers idpdomain.Service
	policy    passwordpolicy.Validator
	audit     auditdomain.Service
	metrics   *metrics.Metrics

	sessionTTL      time.Duration
	defaultRedirect string
}

func NewOrchestrator(p OrchestratorParams) domain.Orchestrator {
	defaultRedirect := strings.TrimSpace(p.Config.Invitation.DefaultRedirect)
	if defaultRedirect == "" {
		defaultRedirect = "/home"
	}
	return &Orchestrator{
		log:             p.Log.Named("invitation.acceptance"),
		codes:           p.Codes,
		users:           p.Users,
		providers:       p.Providers,
		policy:          p.Policy,
		audit:           p.Audit,
		metrics:         p.Metrics,
		sessionTTL:      p.Config.Invitation.SessionTTL,
		defaultRedirect: defaultRedirect,
	}
}

func (o *Orchestrator) PresentInvitation(ctx context.Context, req domain.PresentRequest) (*domain.Presentation, error) {
	ctx, span := tracer.Start(ctx, "invitation.present")
	defer span.End()

	logger := ctxlogger.WithContext(ctx, o.log)
	zoneID := strings.TrimSpace(req.ZoneID)
	if zoneID == "" {
		zoneID = zonectx.ZoneIDOrDefault(ctx)
	}

	redeemed, err := o.codes.Retrieve(ctx, req.Code)
	if err != nil {
		return nil, o.fail(span, err)
	}
	payload, err := domain.DecodePayload(redeemed.Data)
	if err != nil {
		return nil, o.fail(span, err)
	}

	provider, err := o.providers.RetrieveByOrigin(ctx, payload.Origin(), zoneID)
	if err != nil {
		if errors.Is(err, idpdomain.ErrProviderNotFound) {
			logger.Debug("no suitable identity provider", zap.String("origin", payload.Origin()))
			return nil, o.fail(span, fmt.Errorf("%w: %w", domain.ErrNoSuitableIDP, err))
		}
		return nil, o.fail(span, err)
	}

	user, err := o.users.Retrieve(ctx, payload.UserID())
	if err != nil {
		return nil, o.fail(span, err)
	}

	span.SetAttributes(
		attribute.String("invitation.user_id", payload.UserID()),
		attribute.String("invitation.origin", provider.OriginKey),
		attribute.String("invitation.provider_type", string(provider.Type)),
		attribute.Bool("invitation.user_verified", user.Verified),
	)

	automatic := skipsPasswordStep(provider.Type, user.Verified)
	if automatic && payload.RedirectURI() == "" {
		return nil, o.fail(span, fmt.Errorf("%w: missing %s", domain.ErrDecode, domain.KeyRedirectURI))
	}

	// the long-lived invite code is spent; the password step gets its own
	// short-lived code carrying the same payload
	rotated, err := o.codes.Generate(ctx, codedomain.GenerateRequest{
		Data:   redeemed.Data,
		TTL:    o.sessionTTL,
		Intent: domain.IntentInvitationSession,
	})
	if err != nil {
		return nil, o.fail(span, err)
	}

	if automatic {
		accepted, _, err := o.finalize(ctx, rotated.Code, "", nil)
		if err != nil {
			return nil, o.fail(span, err)
		}
		o.metrics.RecordInvitationAccepted(metrics.AcceptPathAutomatic)
		o.auditAccepted(ctx, zoneID, accepted, metrics.AcceptPathAutomatic)
		logger.Debug("redirecting invitee without password step", zap.String("redirect_uri", payload.RedirectURI()))
		return &domain.Presentation{RedirectURI: payload.RedirectURI()}, nil
	}

	invited := principal.NewInvited(payload.UserID(), payload.Email(), provider.OriginKey, zoneID)
	o.auditPresented(ctx, zoneID, payload.UserID())
	logger.Debug("presenting invitation challenge", zap.String("user_id", payload.UserID()))

	return &domain.Presentation{
		Challenge: &domain.Challenge{
			Provider: domain.ProviderView{
				OriginKey: provider.OriginKey,
				Name:      provider.Name,
				Type:      provider.Type,
			},
			Code:           rotated.Code,
			PasswordPolicy: o.policy.CurrentPolicy(),
			Fields:         payload.Clone(),
		},
		Principal: &invited,
	}, nil
}

// skipsPasswordStep reports whether the invitee never sets a local password:
// verified users already have one and federated users authenticate elsewhere.
func skipsPasswordStep(kind idpdomain.Kind, verified bool) bool {
	switch kind {
	case idpdomain.KindSAML, idpdomain.KindLDAP:
		return true
	default:
		return verified
	}
}

func (o *Orchestrator) AcceptInvitation(ctx context.Context, req domain.AcceptRequest) (*domain.Acceptance, error) {
	ctx, span := tracer.Start(ctx, "invitation.accept")
	defer span.End()

	if req.Principal == nil {
		return nil, o.fail(span, principal.ErrUnauthenticated)
	}
	if err := domain.ValidatePasswordConfirmation(req.Password, req.PasswordConfirmation, req.Principal.Email); err != nil {
		return nil, o.fail(span, err)
	}
	if err := o.policy.Validate(req.Password); err != nil {
		return nil, o.fail(span, err)
	}

	user, payload, err := o.finalize(ctx, req.Code, req.Password, req.Principal)
	if err != nil {
		return nil, o.fail(span, err)
	}

	authenticated := principal.NewAuthenticated(principal.Identity{
		UserID:     user.ID.String(),
		Username:   user.Username,
		Email:      user.Email,
		Origin:     user.Origin,
		ExternalID: user.ExternalID,
		ZoneID:     user.ZoneID,
	})

	redirect := payload.RedirectURI()
	if redirect == "" {
		redirect = o.defaultRedirect
	}

	o.metrics.RecordInvitationAccepted(metrics.AcceptPathPassword)
	o.auditAccepted(ctx, user.ZoneID, user, metrics.AcceptPathPassword)
	span.SetAttributes(attribute.String("invitation.user_id", authenticated.UserID))
	ctxlogger.WithContext(ctx, o.log).Info("invitation accepted",
		zap.String("user_id", authenticated.UserID),
		zap.String("origin", authenticated.Origin),
	)

	return &domain.Acceptance{
		RedirectURI: redirect,
		Principal:   authenticated,
	}, nil
}

// finalize redeems code and marks the user it names verified, replacing the
// credential when password is set. When holder is set it must be the invited
// principal of the payload's user; the code is spent either way, so a replay
// of a completed invitation reports an expired code.
func (o *Orchestrator) finalize(ctx context.Context, code, password string, holder *principal.Principal) (*userdomain.User, domain.Payload, error) {
	redeemed, err := o.codes.Retrieve(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	payload, err := domain.DecodePayload(redeemed.Data)
	if err != nil {
		return nil, nil, err
	}
	if holder != nil {
		if holder.UserID != payload.UserID() {
			return nil, nil, domain.ErrPrincipalMismatch
		}
		if err := principal.RequireInvited(holder); err != nil {
			return nil, nil, err
		}
	}

	user, err := o.users.AcceptInvitation(ctx, payload.UserID(), password)
	if err != nil {
		return nil, nil, err
	}
	return user, payload, nil
}

// fail records the failure on the span and in metrics and returns err.
func (o *Orchestrator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.metrics.RecordAcceptanceFailure(ReasonOf(err))
	return err
}

// ReasonOf maps an acceptance error to the reason code shown to invitees.
// Errors that are not user facing map to the empty string.
func ReasonOf(err error) string {
	var mismatch *domain.PasswordMismatchError
	var violation *passwordpolicy.ViolationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, codedomain.ErrCodeExpiredOrUnknown):
		return domain.ReasonCodeExpired
	case errors.Is(err, domain.ErrNoSuitableIDP):
		return domain.ReasonNoSuitableIDP
	case errors.As(err, &mismatch):
		return mismatch.Reason
	case errors.As(err, &violation):
		return domain.ReasonPasswordPolicy
	default:
		return ""
	}
}

func (o *Orchestrator) auditPresented(ctx context.Context, zoneID, userID string) {
	if o.audit == nil {
		return
	}
	_ = o.audit.AuditLog(ctx, zoneID, string(auditdomain.ActorTypeInvitee), &userID, auditdomain.ActionInvitationPresented, "user", &userID, nil)
}

func (o *Orchestrator) auditAccepted(ctx context.Context, zoneID string, user *userdomain.User, path string) {
	if o.audit == nil {
		return
	}
	userID := user.ID.String()
	_ = o.audit.AuditLog(ctx, zoneID, string(auditdomain.ActorTypeInvitee), &userID, auditdomain.ActionInvitationAccepted, "user", &userID, map[string]any{
		"path":   path,
		"origin": user.Origin,
	})
}
