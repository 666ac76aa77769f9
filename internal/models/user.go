package models

import (
	"time"
)

type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string // IdP users have empty password
	FullName     string

	// External identity support
	ExternalID string `gorm:"index"`           // IdP subject id
	AuthSource string `gorm:"default:'local'"` // "local" or "idp"

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExternal returns true if the user authenticates via the external IdP.
func (u *User) IsExternal() bool {
	return u.AuthSource != "local" && u.AuthSource != ""
}
