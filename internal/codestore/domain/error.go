package domain

import "errors"

var (
	ErrCodeExpiredOrUnknown = errors.New("code_expired")
	ErrInvalidTTL           = errors.New("invalid_ttl")
	ErrCodeCollision        = errors.New("code_collision")
)
