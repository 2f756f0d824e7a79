package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows a workspace task listing. Zero values mean "no filter".
type ListFilter struct {
	CategoryID    *snowflake.ID
	Uncategorized bool
	ParentID      *snowflake.ID
	Status        string
	AssigneeID    snowflake.ID
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, task Task) error
	Get(ctx context.Context, workspaceID, id snowflake.ID) (*Task, error)
	GetMany(ctx context.Context, ids []snowflake.ID) ([]Task, error)
	ListByWorkspace(ctx context.Context, workspaceID snowflake.ID, filter ListFilter) ([]Task, error)
	Update(ctx context.Context, task Task) error
	Delete(ctx context.Context, ids []snowflake.ID) error
	ListSubtaskIDs(ctx context.Context, parentID snowflake.ID) ([]snowflake.ID, error)
	UpdateSubtaskCategory(ctx context.Context, parentID snowflake.ID, categoryID *snowflake.ID) error

	ListAssignees(ctx context.Context, taskID snowflake.ID) ([]snowflake.ID, error)
	ListAssigneesFor(ctx context.Context, taskIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error)
	ReplaceAssignees(ctx context.Context, taskID snowflake.ID, assignees []TaskAssignee) error
	DeleteAssignees(ctx context.Context, taskIDs []snowflake.ID) error
}
