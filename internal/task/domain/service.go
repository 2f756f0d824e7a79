package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	List(ctx context.Context, userID snowflake.ID, workspaceID string, req ListRequest) ([]Response, error)
	Get(ctx context.Context, userID snowflake.ID, workspaceID, taskID string) (*Response, error)
	Create(ctx context.Context, userID snowflake.ID, workspaceID string, req CreateRequest) (*Response, error)
	Update(ctx context.Context, userID snowflake.ID, workspaceID, taskID string, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, userID snowflake.ID, workspaceID, taskID string) error
	Move(ctx context.Context, userID snowflake.ID, workspaceID, taskID string, req MoveRequest) error
	Reorder(ctx context.Context, userID snowflake.ID, workspaceID string, taskIDs []string) error
	SetAssignees(ctx context.Context, userID snowflake.ID, workspaceID, taskID string, assigneeIDs []string) error
}

type ListRequest struct {
	CategoryID string // "none" selects uncategorized tasks
	ParentID   string
	Status     string
	AssigneeID string
}

type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	CategoryID  string   `json:"category_id"`
	ParentID    string   `json:"parent_id"`
	DueDate     string   `json:"due_date"` // YYYY-MM-DD
	Assignees   []string `json:"assignees"`
}

// UpdateRequest carries optional fields; nil means "not present". An empty
// DueDate string clears the due date.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	DueDate     *string `json:"due_date"`
}

// MoveRequest relocates a task. An empty CategoryID detaches the task from
// any category. Subtasks only reposition under their parent.
type MoveRequest struct {
	CategoryID string `json:"category_id"`
	Position   int    `json:"position"`
}

type Response struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	CategoryID  *string    `json:"category_id,omitempty"`
	ParentID    *string    `json:"parent_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *string    `json:"due_date,omitempty"`
	Position    int        `json:"position"`
	Assignees   []string   `json:"assignees"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

var (
	ErrInvalidTitle    = errors.New("invalid_task_title")
	ErrInvalidTask     = errors.New("invalid_task")
	ErrInvalidPriority = errors.New("invalid_priority")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidDueDate  = errors.New("invalid_due_date")
	ErrInvalidAssignee = errors.New("assignee_not_a_member")
	ErrNotFound        = errors.New("task_not_found")
	ErrSubtaskDepth    = errors.New("subtasks_cannot_nest")
	ErrSubtaskCategory = errors.New("subtasks_follow_parent_category")
	ErrScopeMismatch   = errors.New("tasks_must_share_scope")
)
