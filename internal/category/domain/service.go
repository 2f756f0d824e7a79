package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	List(ctx context.Context, userID snowflake.ID, workspaceID string) ([]Response, error)
	Create(ctx context.Context, userID snowflake.ID, workspaceID string, req CreateRequest) (*Response, error)
	Update(ctx context.Context, userID snowflake.ID, workspaceID, categoryID string, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, userID snowflake.ID, workspaceID, categoryID string) error
	Move(ctx context.Context, userID snowflake.ID, workspaceID, categoryID string, targetIndex int) error
	Reorder(ctx context.Context, userID snowflake.ID, workspaceID string, categoryIDs []string) error
}

type CreateRequest struct {
	Name  string
	Color string
}

// UpdateRequest carries optional fields; nil means "not present".
type UpdateRequest struct {
	Name  *string
	Color *string
}

type Response struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidName     = errors.New("invalid_category_name")
	ErrInvalidColor    = errors.New("invalid_color")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrDuplicateName   = errors.New("duplicate_category_name")
	ErrNotFound        = errors.New("category_not_found")
	ErrScopeMismatch   = errors.New("categories_must_share_workspace")
)

// InUseError blocks category deletion while tasks still reference it,
// reporting how many do.
type InUseError struct {
	Count int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("category_in_use: %d tasks reference this category", e.Count)
}
