package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member" // create/edit/delete categories and tasks
	RoleViewer = "viewer" // read-only
)

// ValidRole reports whether raw is one of the three membership roles.
func ValidRole(raw string) bool {
	switch raw {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateWorkspaceRequest) (*WorkspaceResponse, error)
	GetByID(ctx context.Context, userID snowflake.ID, workspaceID string) (*WorkspaceResponse, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]WorkspaceListResponseItem, error)
	Update(ctx context.Context, userID snowflake.ID, workspaceID string, req UpdateWorkspaceRequest) (*WorkspaceResponse, error)
	Delete(ctx context.Context, userID snowflake.ID, workspaceID string) error

	// ResolveMembership is the access gate consulted before every
	// workspace-scoped operation.
	ResolveMembership(ctx context.Context, workspaceID, userID snowflake.ID) (*Membership, error)
	ListMembers(ctx context.Context, userID snowflake.ID, workspaceID string) ([]MemberResponse, error)
	UpdateMemberRole(ctx context.Context, actorID snowflake.ID, workspaceID, targetUserID, role string) error
	RemoveMember(ctx context.Context, actorID snowflake.ID, workspaceID, targetUserID string) error
}

type CreateWorkspaceRequest struct {
	Name     string
	Metadata map[string]any
}

// UpdateWorkspaceRequest carries optional fields; nil means "not present".
type UpdateWorkspaceRequest struct {
	Name     *string
	Metadata map[string]any
}

type WorkspaceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"owner_id"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type WorkspaceListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	IsOwner     bool      `json:"is_owner"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidWorkspace = errors.New("invalid_workspace")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrNotFound         = errors.New("workspace_not_found")
	ErrNoAccess         = errors.New("no_access")
	ErrOwnerProtected   = errors.New("owner_protected")
)

// InsufficientRoleError distinguishes "member but wrong role" from
// "not a member at all", naming the roles involved.
type InsufficientRoleError struct {
	Required []string
	Actual   string
}

func (e *InsufficientRoleError) Error() string {
	return fmt.Sprintf("insufficient_role: requires %s, have %s",
		strings.Join(e.Required, " or "), e.Actual)
}

func NewInsufficientRoleError(actual string, required ...string) error {
	return &InsufficientRoleError{Required: required, Actual: actual}
}
