package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identity/internal/config"
	"go.uber.org/zap"
)

const (
	keyAcceptClient = "invitation:accept:client:%s"
	keyAcceptLock   = "invitation:accept:lock:%s"
)

// InvitationLimiter throttles invitation acceptance per client address and
// serializes submissions of the same code across replicas. A nil limiter
// allows everything.
type InvitationLimiter struct {
	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewInvitationLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *InvitationLimiter {
	if client == nil {
		return newInvitationLimiter(cfg.RateLimit, nil, log)
	}
	return newInvitationLimiter(cfg.RateLimit, client, log)
}

func newInvitationLimiter(cfg config.RateLimitConfig, client lockClient, log *zap.Logger) *InvitationLimiter {
	if !cfg.Enabled {
		return nil
	}
	if client == nil || cfg.AcceptRate <= 0 || cfg.AcceptBurst <= 0 {
		log.Warn("invitation rate limit disabled: incomplete configuration",
			zap.Float64("rate", cfg.AcceptRate),
			zap.Int("burst", cfg.AcceptBurst),
		)
		return nil
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &InvitationLimiter{
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    cfg.AcceptRate,
		burst:   cfg.AcceptBurst,
		lockTTL: lockTTL,
	}
}

func (l *InvitationLimiter) Enabled() bool {
	return l != nil
}

// AllowAccept takes one token from the bucket of clientIP.
func (l *InvitationLimiter) AllowAccept(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAcceptClient, strings.TrimSpace(clientIP)), l.rate, l.burst)
}

// TryLockCode leases code for one in-flight submission. The returned token
// releases it.
func (l *InvitationLimiter) TryLockCode(ctx context.Context, code string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, codeLockKey(code), l.lockTTL)
}

func (l *InvitationLimiter) ReleaseCode(ctx context.Context, code, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, codeLockKey(code), token)
}

// codeLockKey keeps raw codes out of redis key space.
func codeLockKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return fmt.Sprintf(keyAcceptLock, hex.EncodeToString(sum[:]))
}
