package db

import (
	"time"

	"gorm.io/datatypes"
)

// LoginEvent records one successful sign-in. Rows are append-only; the
// dashboard reads them in time ranges and never mutates them.
type LoginEvent struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time `gorm:"index"`

	// ExpiresAt is the timestamp after which this event is eligible
	// for deletion by the retention worker. A nil value means the
	// event does not currently expire.
	ExpiresAt *time.Time `gorm:"index"`

	UserID uint `gorm:"index"`

	IP string `gorm:"size:64"`
}

// LeadEvent is one raw sales-lead signal: a single chat message or one
// contact-form submission. Immutable once recorded; the lead grouper
// folds many chat rows into one logical conversation on read.
type LeadEvent struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time  `gorm:"index"`
	ExpiresAt *time.Time `gorm:"index"`

	// Kind is "chat" or "contact".
	Kind string `gorm:"size:16;index"`

	IP string `gorm:"size:64"`

	// ConversationID ties chat messages from the same widget session
	// together. Empty for contact submissions and for chat clients that
	// do not send one.
	ConversationID string `gorm:"size:128"`

	Name             string `gorm:"size:128"`
	Email            string `gorm:"size:255"`
	Phone            string `gorm:"size:64"`
	Company          string `gorm:"size:128"`
	Website          string `gorm:"size:255"`
	PreferredContact string `gorm:"size:32"`

	// Attributes holds arbitrary passthrough key/value pairs from the
	// source widget (message text, page URL, UTM tags). A nested
	// "contact" object is consulted as a fallback for the flat contact
	// columns above.
	Attributes datatypes.JSONMap `gorm:"type:json"`
}
