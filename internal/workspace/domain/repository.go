package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type WorkspaceListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	Role      string
	CreatedAt time.Time
}

type MemberListItem struct {
	UserID      snowflake.ID
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWorkspace(ctx context.Context, workspace Workspace) error
	GetWorkspace(ctx context.Context, id snowflake.ID) (*Workspace, error)
	UpdateWorkspace(ctx context.Context, workspace Workspace) error
	DeleteWorkspace(ctx context.Context, id snowflake.ID) error
	ListWorkspacesByUser(ctx context.Context, userID snowflake.ID) ([]WorkspaceListItem, error)
	AddMember(ctx context.Context, member Membership) error
	GetMembership(ctx context.Context, workspaceID, userID snowflake.ID) (*Membership, error)
	ListMembers(ctx context.Context, workspaceID snowflake.ID) ([]MemberListItem, error)
	UpdateMemberRole(ctx context.Context, workspaceID, userID snowflake.ID, role string) error
	RemoveMember(ctx context.Context, workspaceID, userID snowflake.ID) error
}
