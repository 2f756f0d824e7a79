// Package domain contains persistence models for the category service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Category groups tasks inside a workspace. Position is dense and
// zero-based within the workspace.
type Category struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID `gorm:"not null;index" json:"workspace_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Color       string       `gorm:"type:text;not null" json:"color"`
	Position    int          `gorm:"not null" json:"position"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Category) TableName() string { return "categories" }
