// Package domain contains identity provider types.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind is the protocol family of an identity provider.
type Kind string

const (
	KindUAA       Kind = "uaa"
	KindSAML      Kind = "saml"
	KindLDAP      Kind = "ldap"
	KindOIDC      Kind = "oidc1.0"
	KindFederated Kind = "federated"
)

// OriginLocal is the origin key of the built-in username/password provider.
const OriginLocal = "uaa"

// ParseKind maps a configured type to a Kind; unknown values are treated as
// generic federated providers.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "uaa", "local", "internal":
		return KindUAA
	case "saml", "saml2":
		return KindSAML
	case "ldap":
		return KindLDAP
	case "oidc", "oidc1.0", "oauth2.0", "oauth":
		return KindOIDC
	default:
		return KindFederated
	}
}

// DelegatesCredentials reports whether users of this kind authenticate
// elsewhere and never set a local password during acceptance.
func (k Kind) DelegatesCredentials() bool {
	return k == KindSAML || k == KindLDAP
}

// Provider is an identity provider registered in a zone under an origin key.
type Provider struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	ZoneID    string            `gorm:"column:zone_id;type:text;not null;uniqueIndex:ux_identity_providers_zone_origin,priority:1" json:"zone_id"`
	OriginKey string            `gorm:"column:origin_key;type:text;not null;uniqueIndex:ux_identity_providers_zone_origin,priority:2" json:"origin_key"`
	Name      string            `gorm:"column:name;type:text;not null" json:"name"`
	Type      Kind              `gorm:"column:type;type:text;not null" json:"type"`
	Active    bool              `gorm:"column:active;not null" json:"active"`
	Config    datatypes.JSONMap `gorm:"column:config;type:json" json:"config,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Provider) TableName() string { return "identity_providers" }
