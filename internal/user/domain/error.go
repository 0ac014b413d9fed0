package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound    = errors.New("user_not_found")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrVersionMismatch = errors.New("version_mismatch")
)

// AlreadyExistsError reports a create that collided with an existing user
// of the same zone, origin and username.
type AlreadyExistsError struct {
	UserID   string
	Verified bool
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("user_already_exists: id=%s verified=%t", e.UserID, e.Verified)
}
