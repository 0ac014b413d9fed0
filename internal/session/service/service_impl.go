package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/principal"
	"github.com/smallbiznis/identity/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const sessionTokenBytes = 32

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   domain.Repository
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	log        *zap.Logger
	repo       domain.Repository
	genID      *snowflake.Node
	clock      clock.Clock
	invitedTTL time.Duration
	userTTL    time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("session.service"),
		repo:       p.Repo,
		genID:      p.GenID,
		clock:      p.Clock,
		invitedTTL: p.Config.Invitation.SessionTTL,
		userTTL:    p.Config.Session.TTL,
	}
}

func (s *Service) Start(ctx context.Context, req domain.StartRequest) (*domain.Started, error) {
	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	// invited sessions live only as long as the code minted for them
	ttl := s.userTTL
	if req.Principal.IsInvited() {
		ttl = s.invitedTTL
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		SessionTokenHash: hashToken(rawToken),
		UserID:           req.Principal.UserID,
		ZoneID:           req.Principal.ZoneID,
		Kind:             req.Principal.Kind,
		Principal:        datatypes.NewJSONType(req.Principal),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &domain.Started{
		SessionID: session.ID,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.repo.FindByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if !now.Before(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.repo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) Rotate(ctx context.Context, rawToken string, req domain.StartRequest) (*domain.Started, error) {
	if strings.TrimSpace(rawToken) != "" {
		if err := s.Revoke(ctx, rawToken); err != nil && !errors.Is(err, domain.ErrInvalidSession) {
			return nil, err
		}
	}
	return s.Start(ctx, req)
}

func (s *Service) Revoke(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.repo.FindByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}
	if session.RevokedAt != nil {
		return nil
	}
	return s.repo.Revoke(ctx, session.ID, s.clock.Now())
}

func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < 0 {
		retention = 0
	}
	return s.repo.DeleteEnded(ctx, s.clock.Now().Add(-retention))
}

// PrincipalOf returns the principal stored with the session.
func PrincipalOf(session *domain.Session) principal.Principal {
	return session.Principal.Data()
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
