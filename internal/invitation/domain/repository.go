package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, invitation Invitation) error
	Get(ctx context.Context, workspaceID, id snowflake.ID) (*Invitation, error)
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	GetPending(ctx context.Context, workspaceID snowflake.ID, email string, now time.Time) (*Invitation, error)
	ListByWorkspace(ctx context.Context, workspaceID snowflake.ID, cursor *pagination.Cursor, limit int) ([]Invitation, error)
	MarkAccepted(ctx context.Context, id snowflake.ID, at time.Time) error
	Delete(ctx context.Context, workspaceID, id snowflake.ID) error
}
