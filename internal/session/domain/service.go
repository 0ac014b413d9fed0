package domain

import (
	"context"
	"time"
)

type Service interface {
	// Start persists a new session for the principal.
	Start(ctx context.Context, req StartRequest) (*Started, error)
	// Authenticate resolves a live session from its raw cookie token.
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	// Rotate revokes the session behind rawToken and starts a new one, so a
	// principal upgrade never reuses the token issued before it.
	Rotate(ctx context.Context, rawToken string, req StartRequest) (*Started, error)
	Revoke(ctx context.Context, rawToken string) error
	// Purge deletes sessions that ended more than retention ago.
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}
