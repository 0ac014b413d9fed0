package authorization

import (
	"context"

	"github.com/smallbiznis/identity/internal/principal"
)

const (
	ObjectInvitation       = "invitation"
	ObjectAuditLog         = "audit_log"
	ObjectIdentityProvider = "identity_provider"
)

const (
	ActionInvitationCreate       = "invitation.create"
	ActionAuditLogView           = "audit_log.view"
	ActionIdentityProviderManage = "identity_provider.manage"
)

const (
	RoleZoneAdmin = "role:zone_admin"
)

type Service interface {
	// Authorize checks the principal's own grants and every authority it
	// carries against the zone policy.
	Authorize(ctx context.Context, p *principal.Principal, object string, action string) error
	// Grant assigns a role to a user inside a zone.
	Grant(ctx context.Context, userID string, role string, zoneID string) error
}
