package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Invitation is pending while unaccepted and unexpired. Expiry is derived
// from comparing now to ExpiresAt, never written back. Cancellation
// deletes the row.
type Invitation struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	WorkspaceID snowflake.ID `gorm:"index;not null"`
	Email       string       `gorm:"not null"`
	Role        string       `gorm:"not null"`
	Token       string       `gorm:"uniqueIndex;not null"`
	InvitedBy   snowflake.ID `gorm:"not null"`
	ExpiresAt   time.Time    `gorm:"not null"`
	AcceptedAt  *time.Time   ``
	CreatedAt   time.Time    ``
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i Invitation) Pending(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}
