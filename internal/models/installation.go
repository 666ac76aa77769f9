package models

import (
	"time"
)

// Installation represents one physical device unit. The record is created
// at registration, bound to an owner exactly once at claim, and mutated on
// bootstrap, confirm, token refresh and health submission. It is never
// hard-deleted in normal operation.
type Installation struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	InstallID string `gorm:"uniqueIndex;not null"` // device-supplied, immutable
	ClaimCode string `gorm:"uniqueIndex;not null"` // single-use, never regenerated

	// Ownership. OwnerID stays NULL until the claim succeeds; the claim
	// itself is a conditional update on "owner_id IS NULL".
	OwnerID       *string `gorm:"index"`
	ClaimedAt     *time.Time
	CustomerName  string
	CustomerEmail string

	// Credential material. Refresh validity is also checked against the
	// stored value, so overwriting it revokes the previous token.
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time

	// Confirmed marks that the device acknowledged receipt of its bootstrap
	// credentials; once set, anonymous config fetches are refused.
	Confirmed bool `gorm:"default:false"`

	Metadata   string // device-reported, e.g. firmware version and model
	LastSeenAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsClaimed reports whether the installation has an owner.
func (i *Installation) IsClaimed() bool {
	return i.OwnerID != nil
}

// HealthReport is a raw device health payload, persisted verbatim. The
// report timestamp feeds the installation's last-seen signal; there is no
// heartbeat-missed alerting on top of it.
type HealthReport struct {
	ID         string `gorm:"primaryKey"`
	InstallID  string `gorm:"index;not null"`
	Payload    string `gorm:"type:text"`
	ReportedAt time.Time
}
