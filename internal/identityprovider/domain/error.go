package domain

import "errors"

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidOrigin    = errors.New("invalid_origin")
)
