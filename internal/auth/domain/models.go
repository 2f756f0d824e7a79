package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Email        string       `gorm:"uniqueIndex;not null"`
	DisplayName  string       `gorm:"not null"`
	PasswordHash string       `gorm:"not null"`
	CreatedAt    time.Time    ``
	UpdatedAt    time.Time    ``
}

func (User) TableName() string {
	return "users"
}

type Session struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"index;not null"`
	Token     string       `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time    `gorm:"not null"`
	CreatedAt time.Time    ``
}

func (Session) TableName() string {
	return "sessions"
}
