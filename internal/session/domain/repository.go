package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, session *Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, id snowflake.ID, lastSeen time.Time) error
	Revoke(ctx context.Context, id snowflake.ID, revokedAt time.Time) error
	// DeleteEnded removes sessions that expired or were revoked at or before cutoff.
	DeleteEnded(ctx context.Context, cutoff time.Time) (int64, error)
}
