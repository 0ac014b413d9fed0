// Package domain contains the expiring code types shared by the store backends.
package domain

import "time"

// ExpiringCode is a single-use opaque token bound to a data payload.
// It can be redeemed once and only strictly before ExpiresAt.
type ExpiringCode struct {
	Code      string    `gorm:"column:code;type:text;primaryKey" json:"code"`
	Data      string    `gorm:"column:data;type:text;not null" json:"data"`
	Intent    string    `gorm:"column:intent;type:text" json:"intent,omitempty"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ExpiringCode) TableName() string { return "expiring_codes" }

// Expired reports whether the code can no longer be redeemed at now.
func (c ExpiringCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
