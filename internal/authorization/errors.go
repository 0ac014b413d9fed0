package authorization

import "errors"

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidZone   = errors.New("invalid_zone")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
