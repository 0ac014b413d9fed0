package domain

import "context"

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	Retrieve(ctx context.Context, id string) (*User, error)
	Verify(ctx context.Context, id string, version int) (*User, error)
	ChangeCredential(ctx context.Context, id string, expectedVersion *int, password string) (*User, error)
	// AcceptInvitation verifies the user and, when password is non-empty,
	// replaces its credential. Both changes commit together or not at all.
	AcceptInvitation(ctx context.Context, id string, password string) (*User, error)
}

type CreateUserRequest struct {
	ZoneID   string
	Origin   string
	Email    string
	Password string
}
