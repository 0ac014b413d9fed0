package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByUsername(ctx context.Context, zoneID, origin, username string) (*User, error)
	// UpdateVersioned applies fields, stamps updated_at with now and bumps the
	// version only when the stored version equals expected.
	UpdateVersioned(ctx context.Context, id snowflake.ID, expected int, now time.Time, fields map[string]any) error
	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}
