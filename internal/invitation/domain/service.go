package domain

import "context"

type Issuer interface {
	Invite(ctx context.Context, req InviteRequest) (*Invitation, error)
	InviteUsers(ctx context.Context, req BatchInviteRequest) (*BatchInviteResult, error)
}

type Orchestrator interface {
	// PresentInvitation redeems an invitation code and either completes
	// acceptance for users who never set a local password or returns the
	// password challenge with a freshly minted short-lived code.
	PresentInvitation(ctx context.Context, req PresentRequest) (*Presentation, error)
	// AcceptInvitation completes the password path for an invited principal.
	AcceptInvitation(ctx context.Context, req AcceptRequest) (*Acceptance, error)
}
