package domain

import (
	idpdomain "github.com/smallbiznis/identity/internal/identityprovider/domain"
	"github.com/smallbiznis/identity/internal/passwordpolicy"
	"github.com/smallbiznis/identity/internal/principal"
)

type InviteRequest struct {
	Email       string
	RedirectURI string
	ClientID    string
	Origin      string
	ZoneID      string
	Inviter     *principal.Principal
}

type BatchInviteRequest struct {
	Emails      []string             `json:"emails"`
	RedirectURI string               `json:"redirect_uri"`
	ClientID    string               `json:"client_id,omitempty"`
	Origin      string               `json:"origin,omitempty"`
	ZoneID      string               `json:"-"`
	Inviter     *principal.Principal `json:"-"`
}

// Invitation describes one issued invite.
type Invitation struct {
	Email      string `json:"email"`
	UserID     string `json:"userId,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Success    bool   `json:"success"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Message    string `json:"errorMessage,omitempty"`
	InviteLink string `json:"inviteLink,omitempty"`
	NewUser    bool   `json:"-"`
	Code       string `json:"-"`
}

type BatchInviteResult struct {
	NewInvites    []Invitation `json:"new_invites"`
	FailedInvites []Invitation `json:"failed_invites"`
}

type PresentRequest struct {
	Code   string
	ZoneID string
}

// ProviderView is the provider summary shown on the accept page.
type ProviderView struct {
	OriginKey string         `json:"origin_key"`
	Name      string         `json:"name"`
	Type      idpdomain.Kind `json:"type"`
}

// Challenge is what an invitee needs to choose a password.
type Challenge struct {
	Provider       ProviderView          `json:"provider"`
	Code           string                `json:"code"`
	PasswordPolicy passwordpolicy.Policy `json:"password_policy"`
	Fields         map[string]string     `json:"fields"`
}

// Presentation is the outcome of presenting an invitation code. Exactly one
// of RedirectURI and Challenge is set; Principal accompanies Challenge.
type Presentation struct {
	RedirectURI string
	Challenge   *Challenge
	Principal   *principal.Principal
}

type AcceptRequest struct {
	Password             string
	PasswordConfirmation string
	Code                 string
	ClientID             string
	RedirectURI          string
	Principal            *principal.Principal
}

// Acceptance is the outcome of a completed invitation. Principal replaces
// the invited principal held by the caller.
type Acceptance struct {
	RedirectURI string
	Principal   principal.Principal
}
