// Package domain contains server-side session types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/principal"
	"gorm.io/datatypes"
)

// Session binds a cookie token to the principal installed for it.
type Session struct {
	ID               snowflake.ID                            `gorm:"primaryKey"`
	SessionTokenHash string                                  `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserID           string                                  `gorm:"column:user_id;type:text;not null;index"`
	ZoneID           string                                  `gorm:"column:zone_id;type:text;not null"`
	Kind             principal.Kind                          `gorm:"column:kind;type:text;not null"`
	Principal        datatypes.JSONType[principal.Principal] `gorm:"column:principal;type:json;not null"`
	UserAgent        string                                  `gorm:"column:user_agent;type:text"`
	IPAddress        string                                  `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time                               `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time                              `gorm:"column:revoked_at"`
	CreatedAt        time.Time                               `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time                               `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

type StartRequest struct {
	Principal principal.Principal
	UserAgent string
	IPAddress string
}

// Started is returned once; RawToken is never stored.
type Started struct {
	SessionID snowflake.ID
	RawToken  string
	ExpiresAt time.Time
}
