package domain

import (
	"context"
	"time"
)

type Repository interface {
	// Backend names the storage backend for logs and metrics.
	Backend() string
	// Create stores a new code. A code that already exists yields ErrCodeCollision.
	Create(ctx context.Context, code *ExpiringCode) error
	// Take atomically removes the code and returns it. Of any number of
	// concurrent callers at most one receives the record.
	Take(ctx context.Context, code string) (*ExpiringCode, error)
	// DeleteExpired removes every code whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
