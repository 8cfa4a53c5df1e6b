package db

import (
	"time"
)

// User represents an account in the product. CreatedAt doubles as the
// signup event for the dashboard's signup series; there is no separate
// signup table. Admin users can additionally sign in to the dashboard
// and manage other users and ingest keys. The bootstrap admin (from env)
// is created as a row in this table on startup.
type User struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	// IsAdmin marks users that can reach the dashboard and manage other
	// users and API keys. The bootstrap admin will have IsAdmin=true.
	IsAdmin bool `gorm:"default:false"`
}
