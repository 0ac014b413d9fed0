package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identity/internal/codestore/domain"
)

const BackendRedis = "redis"

// Client is the subset of go-redis commands the store relies on.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

type redisRepo struct {
	client Client
	prefix string
	now    func() time.Time
}

// NewRedis stores codes as JSON values whose redis TTL mirrors ExpiresAt.
// now is used to derive the TTL at write time.
func NewRedis(client Client, prefix string, now func() time.Time) domain.Repository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &redisRepo{client: client, prefix: prefix, now: now}
}

func (r *redisRepo) Backend() string { return BackendRedis }

func (r *redisRepo) key(code string) string {
	return r.prefix + code
}

func (r *redisRepo) Create(ctx context.Context, code *domain.ExpiringCode) error {
	ttl := code.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return domain.ErrInvalidTTL
	}

	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("encode code: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(code.Code), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCodeCollision
	}
	return nil
}

func (r *redisRepo) Take(ctx context.Context, code string) (*domain.ExpiringCode, error) {
	raw, err := r.client.GetDel(ctx, r.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCodeExpiredOrUnknown
	}
	if err != nil {
		return nil, err
	}

	var row domain.ExpiringCode
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode code: %w", err)
	}
	return &row, nil
}

// DeleteExpired is a no-op; redis evicts keys on their own TTL.
func (r *redisRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
