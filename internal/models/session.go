package models

import (
	"time"
)

// Session backs the local identity strategy: the browser cookie carries the
// session id, the row carries the expiry. There is no silent refresh in
// local mode; an expired row forces re-authentication.
type Session struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index;not null"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
