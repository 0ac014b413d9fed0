package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/audit/masking"
	"github.com/smallbiznis/identity/internal/authorization"
	codedomain "github.com/smallbiznis/identity/internal/codestore/domain"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/invitation/domain"
	"github.com/smallbiznis/identity/internal/notification"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/principal"
	userdomain "github.com/smallbiznis/identity/internal/user/domain"
	"github.com/smallbiznis/identity/internal/user/password"
	userservice "github.com/smallbiznis/identity/internal/user/service"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"github.com/smallbiznis/identity/pkg/zonectx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const brandPivotal = "pivotal"

const acceptPath = "/invitations/accept"

// Failure codes reported per email in batch results.
const (
	errorCodeIneligible   = "user.ineligible"
	errorCodeInvalidEmail = "email.invalid"
	errorCodeFailed       = "invitation.failed"
)

type IssuerParams struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Users    userdomain.Service
	Codes    codedomain.Service
	Notifier notification.Service
	Authz    authorization.Service
	Audit    auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Issuer struct {
	log      *zap.Logger
	users    userdomain.Service
	codes    codedomain.Service
	notifier notification.Service
	authz    authorization.Service
	audit    auditdomain.Service
	metrics  *metrics.Metrics

	brand    string
	baseURL  string
	issueTTL time.Duration
}

func NewIssuer(p IssuerParams) domain.Issuer {
	return &Issuer{
		log:      p.Log.Named("invitation.issuer"),
		users:    p.Users,
		codes:    p.Codes,
		notifier: p.Notifier,
		authz:    p.Authz,
		audit:    p.Audit,
		metrics:  p.Metrics,
		brand:    strings.ToLower(strings.TrimSpace(p.Config.Invitation.Brand)),
		baseURL:  strings.TrimRight(p.Config.Invitation.BaseURL, "/"),
		issueTTL: p.Config.Invitation.IssueTTL,
	}
}

func (s *Issuer) Invite(ctx context.Context, req domain.InviteRequest) (*domain.Invitation, error) {
	if err := s.authorize(ctx, req.Inviter); err != nil {
		return nil, err
	}
	return s.invite(ctx, req)
}

// InviteUsers issues one invitation per email. Failures are reported per
// email and never abort the batch.
func (s *Issuer) InviteUsers(ctx context.Context, req domain.BatchInviteRequest) (*domain.BatchInviteResult, error) {
	if len(req.Emails) == 0 {
		return nil, domain.ErrNoEmails
	}
	if err := s.authorize(ctx, req.Inviter); err != nil {
		return nil, err
	}

	result := &domain.BatchInviteResult{
		NewInvites:    []domain.Invitation{},
		FailedInvites: []domain.Invitation{},
	}
	for _, email := range req.Emails {
		invitation, err := s.invite(ctx, domain.InviteRequest{
			Email:       email,
			RedirectURI: req.RedirectURI,
			ClientID:    req.ClientID,
			Origin:      req.Origin,
			ZoneID:      req.ZoneID,
			Inviter:     req.Inviter,
		})
		if err != nil {
			result.FailedInvites = append(result.FailedInvites, failedInvitation(email, req.Origin, err))
			continue
		}
		result.NewInvites = append(result.NewInvites, *invitation)
	}
	return result, nil
}

func (s *Issuer) authorize(ctx context.Context, inviter *principal.Principal) error {
	if err := principal.RequireAuthenticated(inviter); err != nil {
		return err
	}
	return s.authz.Authorize(ctx, inviter, authorization.ObjectInvitation, authorization.ActionInvitationCreate)
}

func (s *Issuer) invite(ctx context.Context, req domain.InviteRequest) (*domain.Invitation, error) {
	ctx, span := tracer.Start(ctx, "invitation.invite")
	defer span.End()

	logger := ctxlogger.WithContext(ctx, s.log)

	zoneID := strings.TrimSpace(req.ZoneID)
	if zoneID == "" {
		zoneID = zonectx.ZoneIDOrDefault(ctx)
	}
	origin := strings.TrimSpace(req.Origin)
	if origin == "" {
		origin = domain.OriginLocal
	}

	placeholder, err := password.Placeholder()
	if err != nil {
		return nil, err
	}

	newUser := true
	var userID, email string
	user, err := s.users.Create(ctx, userdomain.CreateUserRequest{
		ZoneID:   zoneID,
		Origin:   origin,
		Email:    req.Email,
		Password: placeholder,
	})
	var exists *userdomain.AlreadyExistsError
	switch {
	case err == nil:
		userID, email = user.ID.String(), user.Email
	case errors.As(err, &exists):
		normalized, _ := userservice.NormalizeEmail(req.Email)
		if exists.Verified {
			s.metrics.RecordInvitationIssued(metrics.IssueOutcomeFailed)
			return nil, &domain.UserConflictError{Email: normalized, Verified: true}
		}
		newUser = false
		userID, email = exists.UserID, normalized
	case errors.Is(err, userdomain.ErrInvalidEmail):
		s.metrics.RecordInvitationIssued(metrics.IssueOutcomeFailed)
		return nil, domain.ErrInvalidEmail
	default:
		s.metrics.RecordInvitationIssued(metrics.IssueOutcomeFailed)
		return nil, err
	}
	span.SetAttributes(attribute.String("invitation.user_id", userID), attribute.Bool("invitation.new_user", newUser))

	payload := domain.Payload{
		domain.KeyUserID:      userID,
		domain.KeyEmail:       email,
		domain.KeyRedirectURI: strings.TrimSpace(req.RedirectURI),
		domain.KeyOrigin:      origin,
	}
	if clientID := strings.TrimSpace(req.ClientID); clientID != "" {
		payload[domain.KeyClientID] = clientID
	}
	data, err := payload.Encode()
	if err != nil {
		return nil, err
	}

	code, err := s.codes.Generate(ctx, codedomain.GenerateRequest{
		Data:   data,
		TTL:    s.issueTTL,
		Intent: domain.IntentInvitation,
	})
	if err != nil {
		s.metrics.RecordInvitationIssued(metrics.IssueOutcomeFailed)
		return nil, fmt.Errorf("mint invitation code: %w", err)
	}

	link := s.acceptURL(code.Code)
	s.notify(ctx, logger, email, req.Inviter, link)

	outcome := metrics.IssueOutcomeNew
	if !newUser {
		outcome = metrics.IssueOutcomeExisting
	}
	s.metrics.RecordInvitationIssued(outcome)
	s.auditIssued(ctx, zoneID, req.Inviter, userID, email, code.Code, newUser)

	logger.Info("invitation issued",
		zap.String("user_id", userID),
		zap.Bool("new_user", newUser),
		zap.Time("expires_at", code.ExpiresAt),
	)

	return &domain.Invitation{
		Email:      email,
		UserID:     userID,
		Origin:     origin,
		Success:    true,
		InviteLink: link,
		NewUser:    newUser,
		Code:       code.Code,
	}, nil
}

// notify sends the invitation message. The user and the code are already
// committed, so delivery failures are logged and dropped.
func (s *Issuer) notify(ctx context.Context, logger *zap.Logger, email string, inviter *principal.Principal, link string) {
	inviterName := ""
	if inviter != nil {
		inviterName = inviter.Username
	}
	body, err := notification.RenderInvitation(notification.InvitationView{
		InviterName: inviterName,
		ServiceName: s.serviceName(),
		AcceptURL:   link,
	})
	if err == nil {
		err = s.notifier.SendMessage(ctx, notification.Message{
			To:      email,
			Type:    notification.MessageInvitation,
			Subject: s.subject(),
			HTML:    body,
		})
	}
	if err != nil {
		s.metrics.RecordNotificationError()
		logger.Info("exception raised while sending message to "+email, zap.Error(err))
	}
}

func (s *Issuer) auditIssued(ctx context.Context, zoneID string, inviter *principal.Principal, userID, email, code string, newUser bool) {
	if s.audit == nil {
		return
	}
	var actorID *string
	if inviter != nil {
		id := inviter.UserID
		actorID = &id
	}
	_ = s.audit.AuditLog(ctx, zoneID, string(auditdomain.ActorTypeUser), actorID, auditdomain.ActionInvitationIssued, "user", &userID, map[string]any{
		"email":    email,
		"new_user": newUser,
		"code":     masking.MaskSecret(code),
	})
}

func (s *Issuer) acceptURL(code string) string {
	return s.baseURL + acceptPath + "?code=" + url.QueryEscape(code)
}

func (s *Issuer) serviceName() string {
	if s.brand == brandPivotal {
		return "Pivotal"
	}
	return "Cloud Foundry"
}

func (s *Issuer) subject() string {
	return "Invitation to join " + s.serviceName()
}

func failedInvitation(email, origin string, err error) domain.Invitation {
	failed := domain.Invitation{
		Email:   strings.TrimSpace(email),
		Origin:  origin,
		Success: false,
		Message: err.Error(),
	}
	var conflict *domain.UserConflictError
	switch {
	case errors.As(err, &conflict):
		failed.ErrorCode = errorCodeIneligible
		failed.Message = "User is already verified."
	case errors.Is(err, domain.ErrInvalidEmail):
		failed.ErrorCode = errorCodeInvalidEmail
		failed.Message = "Invalid email address."
	default:
		failed.ErrorCode = errorCodeFailed
	}
	return failed
}
