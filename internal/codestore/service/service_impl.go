package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/codestore/domain"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	codeBytes      = 32
	maxGenerateTry = 3
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("codestore.service"),
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.ExpiringCode, error) {
	if req.TTL <= 0 {
		return nil, domain.ErrInvalidTTL
	}

	now := s.clock.Now()
	if _, err := s.repo.DeleteExpired(ctx, now); err != nil {
		ctxlogger.WithContext(ctx, s.log).Warn("failed to sweep expired codes", zap.Error(err))
	}

	for attempt := 0; attempt < maxGenerateTry; attempt++ {
		value, err := newCode()
		if err != nil {
			return nil, err
		}

		code := &domain.ExpiringCode{
			Code:      value,
			Data:      req.Data,
			Intent:    req.Intent,
			ExpiresAt: now.Add(req.TTL),
			CreatedAt: now,
		}
		err = s.repo.Create(ctx, code)
		if errors.Is(err, domain.ErrCodeCollision) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store code: %w", err)
		}
		return code, nil
	}
	return nil, domain.ErrCodeCollision
}

// Retrieve redeems a code. The stored record is consumed even when it turns
// out to be expired, so a code never resolves twice.
func (s *Service) Retrieve(ctx context.Context, code string) (*domain.ExpiringCode, error) {
	backend := s.repo.Backend()
	if code == "" {
		s.metrics.RecordCodeRedemption(backend, metrics.RedeemResultExpired)
		return nil, domain.ErrCodeExpiredOrUnknown
	}

	row, err := s.repo.Take(ctx, code)
	if errors.Is(err, domain.ErrCodeExpiredOrUnknown) {
		s.metrics.RecordCodeRedemption(backend, metrics.RedeemResultExpired)
		return nil, err
	}
	if err != nil {
		s.metrics.RecordCodeRedemption(backend, metrics.RedeemResultError)
		return nil, fmt.Errorf("redeem code: %w", err)
	}

	if row.Expired(s.clock.Now()) {
		s.metrics.RecordCodeRedemption(backend, metrics.RedeemResultExpired)
		return nil, domain.ErrCodeExpiredOrUnknown
	}

	s.metrics.RecordCodeRedemption(backend, metrics.RedeemResultOK)
	return row, nil
}

func (s *Service) ExpireCodes(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}

func newCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
