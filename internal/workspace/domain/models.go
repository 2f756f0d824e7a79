// Package domain contains persistence models for the workspace service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Workspace represents a tenant. The owner is always an implicit admin
// and cannot be demoted or removed except by workspace deletion.
type Workspace struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Slug      string            `gorm:"type:text;not null" json:"slug"`
	OwnerID   snowflake.ID      `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Workspace) TableName() string { return "workspaces" }

// Membership represents membership of a user in a workspace.
type Membership struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_workspace_user,priority:1" json:"workspace_id"`
	UserID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_workspace_user,priority:2" json:"user_id"`
	Role        string       `gorm:"type:text;not null" json:"role"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }

// CanMutate reports whether the member may create, edit or delete
// categories and tasks.
func (m Membership) CanMutate() bool {
	return m.Role == RoleAdmin || m.Role == RoleMember
}

// IsAdmin reports whether the member may manage members and invitations.
func (m Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}
