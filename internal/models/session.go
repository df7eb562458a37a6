package models

import (
	"time"

	"gorm.io/gorm"
)

// StoredSession persists a signed-in user's credentials between CLI runs.
// The most recently updated row is the active session.
type StoredSession struct {
	gorm.Model
	UserID       string `gorm:"uniqueIndex;not null"`
	Email        string
	IDToken      string `gorm:"not null"`
	RefreshToken string
	ExpiresAt    time.Time
}
