// Package principal describes who is acting on a request: an invitee who has
// presented a valid code but not yet finished acceptance, or a fully
// authenticated user.
package principal

import (
	"context"
	"errors"
	"slices"
)

type Kind string

const (
	KindInvited       Kind = "invited"
	KindAuthenticated Kind = "authenticated"
)

const (
	AuthorityInvited = "uaa.invited"
	AuthorityInvite  = "scim.invite"

	// InvitedName is the authentication name carried by invited principals.
	InvitedName = "scim.invite"
)

// UserAuthorities are granted to every user who completes acceptance.
var UserAuthorities = []string{
	"openid",
	"scim.me",
	"cloud_controller.read",
	"cloud_controller.write",
	"cloud_controller_service_permissions.read",
	"password.write",
	"scim.userids",
	"uaa.user",
	"approvals.me",
	"oauth.approvals",
	"profile",
	"roles",
	"user_attributes",
	"uaa.offline_token",
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotInvited      = errors.New("invalid_principal")
)

type Principal struct {
	Kind        Kind     `json:"kind"`
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Origin      string   `json:"origin"`
	ExternalID  string   `json:"external_id,omitempty"`
	ZoneID      string   `json:"zone_id"`
	Authorities []string `json:"authorities"`
}

// NewInvited builds the restricted principal installed while an invitee
// chooses a password.
func NewInvited(userID, email, origin, zoneID string) Principal {
	return Principal{
		Kind:        KindInvited,
		UserID:      userID,
		Username:    email,
		Email:       email,
		Origin:      origin,
		ZoneID:      zoneID,
		Authorities: []string{AuthorityInvited},
	}
}

// Identity is the subset of a user record an authenticated principal is built from.
type Identity struct {
	UserID     string
	Username   string
	Email      string
	Origin     string
	ExternalID string
	ZoneID     string
}

func NewAuthenticated(id Identity) Principal {
	return Principal{
		Kind:        KindAuthenticated,
		UserID:      id.UserID,
		Username:    id.Username,
		Email:       id.Email,
		Origin:      id.Origin,
		ExternalID:  id.ExternalID,
		ZoneID:      id.ZoneID,
		Authorities: slices.Clone(UserAuthorities),
	}
}

func (p Principal) IsInvited() bool       { return p.Kind == KindInvited }
func (p Principal) IsAuthenticated() bool { return p.Kind == KindAuthenticated }

func (p Principal) HasAuthority(authority string) bool {
	return slices.Contains(p.Authorities, authority)
}

// RequireAuthenticated rejects missing and invited principals. Invited
// principals must never reach operations reserved for signed-in users.
func RequireAuthenticated(p *Principal) error {
	if p == nil || !p.IsAuthenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func RequireInvited(p *Principal) error {
	if p == nil || !p.IsInvited() {
		return ErrNotInvited
	}
	return nil
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok {
		return nil, false
	}
	return &p, true
}
