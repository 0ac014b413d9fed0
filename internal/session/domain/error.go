package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session_not_found")
	ErrInvalidSession  = errors.New("invalid_session")
	ErrSessionExpired  = errors.New("session_expired")
	ErrSessionRevoked  = errors.New("session_revoked")
)
