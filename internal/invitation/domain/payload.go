// Package domain contains the invitation payload, requests and results
// shared by the issuer and the acceptance flow.
package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

const (
	KeyUserID      = "user_id"
	KeyEmail       = "email"
	KeyRedirectURI = "redirect_uri"
	KeyOrigin      = "origin"
	KeyClientID    = "client_id"
)

// Code intents recorded with minted codes.
const (
	IntentInvitation        = "invitation"
	IntentInvitationSession = "invitation_session"
)

const OriginLocal = "uaa"

// Payload is the attribute bundle bound to an invitation code. It is
// immutable once encoded.
type Payload map[string]string

func (p Payload) UserID() string      { return p[KeyUserID] }
func (p Payload) Email() string       { return p[KeyEmail] }
func (p Payload) RedirectURI() string { return p[KeyRedirectURI] }

// Origin returns the identity provider origin, the local provider when unset.
func (p Payload) Origin() string {
	if origin := strings.TrimSpace(p[KeyOrigin]); origin != "" {
		return origin
	}
	return OriginLocal
}

// Validate enforces the keys every issued payload carries.
func (p Payload) Validate() error {
	if strings.TrimSpace(p[KeyUserID]) == "" {
		return fmt.Errorf("%w: missing %s", ErrDecode, KeyUserID)
	}
	if strings.TrimSpace(p[KeyEmail]) == "" {
		return fmt.Errorf("%w: missing %s", ErrDecode, KeyEmail)
	}
	return nil
}

func (p Payload) Clone() Payload {
	return maps.Clone(p)
}

func (p Payload) Encode() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodePayload(data string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
