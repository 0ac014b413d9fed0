package domain

import (
	"errors"
	"fmt"
)

// Reason codes reported to the invitee.
const (
	ReasonCodeExpired      = "code_expired"
	ReasonNoSuitableIDP    = "no_suitable_idp"
	ReasonFormError        = "form_error"
	ReasonPasswordMismatch = "password_mismatch"
	ReasonPasswordPolicy   = "password_policy"
)

var (
	// ErrDecode marks a payload that does not carry what the issuer always
	// writes. It is fatal and never reported as a user error.
	ErrDecode            = errors.New("invalid_invitation_payload")
	ErrNoSuitableIDP     = errors.New(ReasonNoSuitableIDP)
	ErrPasswordMismatch  = errors.New(ReasonPasswordMismatch)
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrNoEmails          = errors.New("no_emails")
	ErrPrincipalMismatch = errors.New("principal_mismatch")
)

// PasswordMismatchError rejects a password and confirmation pair before any
// state is touched. Email echoes the invited principal for redisplay.
type PasswordMismatchError struct {
	Reason string
	Email  string
}

func (e *PasswordMismatchError) Error() string { return e.Reason }
func (e *PasswordMismatchError) Unwrap() error { return ErrPasswordMismatch }

// UserConflictError rejects an invitation for an identity that already exists
// and is verified.
type UserConflictError struct {
	Email    string
	Verified bool
}

func (e *UserConflictError) Error() string {
	return fmt.Sprintf("user_conflict: email=%s verified=%t", e.Email, e.Verified)
}

// ValidatePasswordConfirmation mirrors the form rules of the accept page.
func ValidatePasswordConfirmation(password, confirmation, email string) error {
	if password == "" || confirmation == "" {
		return &PasswordMismatchError{Reason: ReasonFormError, Email: email}
	}
	if password != confirmation {
		return &PasswordMismatchError{Reason: ReasonPasswordMismatch, Email: email}
	}
	return nil
}
