package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/user/domain"
	"github.com/smallbiznis/identity/internal/user/password"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/smallbiznis/identity/pkg/zonectx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   domain.Repository
	GenID  *snowflake.Node
	Clock  clock.Clock
	Hasher *password.Hasher
}

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	hasher *password.Hasher
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("user.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  p.Clock,
		hasher: p.Hasher,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if req.Password == "" {
		return nil, domain.ErrInvalidPassword
	}

	zoneID := strings.TrimSpace(req.ZoneID)
	if zoneID == "" {
		zoneID = zonectx.ZoneIDOrDefault(ctx)
	}
	origin := strings.TrimSpace(req.Origin)
	if origin == "" {
		origin = domain.OriginLocal
	}

	if existing, err := s.repo.FindByUsername(ctx, zoneID, origin, email); err == nil {
		return nil, &domain.AlreadyExistsError{UserID: existing.ID.String(), Verified: existing.Verified}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:                   s.genID.Generate(),
		ZoneID:               zoneID,
		Origin:               origin,
		Username:             email,
		Email:                email,
		ExternalID:           uuid.NewString(),
		Verified:             false,
		PasswordHash:         &hashed,
		PasswordLastModified: &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race with a concurrent create of the same handle.
			existing, findErr := s.repo.FindByUsername(ctx, zoneID, origin, email)
			if findErr != nil {
				return nil, findErr
			}
			return nil, &domain.AlreadyExistsError{UserID: existing.ID.String(), Verified: existing.Verified}
		}
		return nil, err
	}

	s.log.Debug("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("zone_id", zoneID),
		zap.String("origin", origin),
	)
	return user, nil
}

func (s *Service) Retrieve(ctx context.Context, id string) (*domain.User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) Verify(ctx context.Context, id string, version int) (*domain.User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateVersioned(ctx, userID, version, s.clock.Now(), map[string]any{"verified": true}); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) ChangeCredential(ctx context.Context, id string, expectedVersion *int, newPassword string) (*domain.User, error) {
	if newPassword == "" {
		return nil, domain.ErrInvalidPassword
	}
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	var updated *domain.User
	err = s.repo.Transaction(ctx, func(repo domain.Repository) error {
		current, err := repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		version := current.Version
		if expectedVersion != nil {
			version = *expectedVersion
		}
		if err := repo.UpdateVersioned(ctx, userID, version, s.clock.Now(), s.credentialFields(hashed)); err != nil {
			return err
		}
		updated, err = repo.FindByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) AcceptInvitation(ctx context.Context, id string, newPassword string) (*domain.User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"verified": true}
	if newPassword != "" {
		hashed, err := s.hasher.Hash(newPassword)
		if err != nil {
			return nil, err
		}
		for k, v := range s.credentialFields(hashed) {
			fields[k] = v
		}
	}

	var accepted *domain.User
	err = s.repo.Transaction(ctx, func(repo domain.Repository) error {
		current, err := repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := repo.UpdateVersioned(ctx, userID, current.Version, s.clock.Now(), fields); err != nil {
			return err
		}
		accepted, err = repo.FindByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("accept invitation for user %s: %w", id, err)
	}

	s.log.Debug("invitation accepted",
		zap.String("user_id", id),
		zap.Bool("credential_changed", newPassword != ""),
	)
	return accepted, nil
}

func (s *Service) credentialFields(hashed string) map[string]any {
	now := s.clock.Now()
	return map[string]any{
		"password_hash":          hashed,
		"password_last_modified": &now,
	}
}

// NormalizeEmail lower-cases the bare address of a RFC 5322 mailbox.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, domain.ErrUserNotFound
	}
	return parsed, nil
}

