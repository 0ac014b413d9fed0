// Package passwordpolicy validates candidate passwords against the zone
// password policy loaded from password_policy.yml.
package passwordpolicy

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Policy describes the composition rules a new password must satisfy.
type Policy struct {
	MinLength            int `mapstructure:"minLength" json:"minLength"`
	MaxLength            int `mapstructure:"maxLength" json:"maxLength"`
	RequireUpperCase     int `mapstructure:"requireUpperCaseCharacter" json:"requireUpperCaseCharacter"`
	RequireLowerCase     int `mapstructure:"requireLowerCaseCharacter" json:"requireLowerCaseCharacter"`
	RequireDigit         int `mapstructure:"requireDigit" json:"requireDigit"`
	RequireSpecial       int `mapstructure:"requireSpecialCharacter" json:"requireSpecialCharacter"`
	ExpirePasswordMonths int `mapstructure:"expirePasswordInMonths" json:"expirePasswordInMonths"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinLength: 0,
		MaxLength: 255,
	}
}

// ViolationError lists every rule the password broke.
type ViolationError struct {
	Messages []string
}

func (e *ViolationError) Error() string {
	return strings.Join(e.Messages, " ")
}

func validatePolicy(p Policy) error {
	if p.MinLength < 0 || p.MaxLength <= 0 {
		return errors.New("passwordPolicy lengths must be positive")
	}
	if p.MinLength > p.MaxLength {
		return errors.New("passwordPolicy.minLength exceeds maxLength")
	}
	if p.RequireUpperCase < 0 || p.RequireLowerCase < 0 || p.RequireDigit < 0 || p.RequireSpecial < 0 {
		return errors.New("passwordPolicy character requirements cannot be negative")
	}
	return nil
}

// Check returns nil when password satisfies p, otherwise a *ViolationError.
func (p Policy) Check(password string) error {
	var upper, lower, digit, special int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digit++
		case !unicode.IsSpace(r):
			special++
		}
	}

	length := len([]rune(password))
	var messages []string
	if length < p.MinLength {
		messages = append(messages, fmt.Sprintf("Password must be at least %d characters in length.", p.MinLength))
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		messages = append(messages, fmt.Sprintf("Password must be no more than %d characters in length.", p.MaxLength))
	}
	if upper < p.RequireUpperCase {
		messages = append(messages, fmt.Sprintf("Password must contain at least %d uppercase characters.", p.RequireUpperCase))
	}
	if lower < p.RequireLowerCase {
		messages = append(messages, fmt.Sprintf("Password must contain at least %d lowercase characters.", p.RequireLowerCase))
	}
	if digit < p.RequireDigit {
		messages = append(messages, fmt.Sprintf("Password must contain at least %d digit characters.", p.RequireDigit))
	}
	if special < p.RequireSpecial {
		messages = append(messages, fmt.Sprintf("Password must contain at least %d special characters.", p.RequireSpecial))
	}
	if len(messages) > 0 {
		return &ViolationError{Messages: messages}
	}
	return nil
}
