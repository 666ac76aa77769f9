package models

import (
	"time"
)

// DeviceAuthRequest is the ephemeral record pairing a machine-held device
// code with a human-typed user code (RFC 8628). The plaintext device code
// is returned to the caller once and only its PBKDF2 hash is stored; the
// record is consumed on the first successful token exchange and purged on
// expiry.
type DeviceAuthRequest struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	DeviceCode       string `gorm:"-"`                    // in-memory only, never persisted
	DeviceCodeHash   string `gorm:"uniqueIndex;not null"` // PBKDF2 hash of device code
	DeviceCodeSalt   string `gorm:"not null"`
	DeviceCodeSuffix string `gorm:"index;not null"` // last 8 chars for indexed lookup
	UserCode         string `gorm:"uniqueIndex;not null"`
	ClientID         string `gorm:"not null"`
	Scope            string
	ExpiresAt        time.Time
	Interval         int // advertised polling interval in seconds

	// Set once when a logged-in human authorizes the request.
	Authorized   bool `gorm:"default:false"`
	UserID       string
	AuthorizedAt *time.Time

	CreatedAt time.Time
}

func (r *DeviceAuthRequest) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
