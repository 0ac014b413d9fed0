// Package domain contains the user directory types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const OriginLocal = "uaa"

// User is a directory entry. Invited users start unverified with a random
// placeholder credential and become verified when the invitation is accepted.
type User struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	ZoneID               string            `gorm:"column:zone_id;type:text;not null;uniqueIndex:ux_users_zone_origin_username,priority:1" json:"zone_id"`
	Origin               string            `gorm:"column:origin;type:text;not null;uniqueIndex:ux_users_zone_origin_username,priority:2" json:"origin"`
	Username             string            `gorm:"column:username;type:text;not null;uniqueIndex:ux_users_zone_origin_username,priority:3" json:"username"`
	Email                string            `gorm:"column:email;type:text;not null;index" json:"email"`
	ExternalID           string            `gorm:"column:external_id;type:text" json:"external_id,omitempty"`
	Verified             bool              `gorm:"column:verified;not null;default:false" json:"verified"`
	PasswordHash         *string           `gorm:"column:password_hash;type:text" json:"-"`
	PasswordLastModified *time.Time        `gorm:"column:password_last_modified" json:"password_last_modified,omitempty"`
	Version              int               `gorm:"column:version;not null;default:0" json:"version"`
	Metadata             datatypes.JSONMap `gorm:"column:metadata;type:json" json:"metadata,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
