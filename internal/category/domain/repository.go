package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, category Category) error
	Get(ctx context.Context, workspaceID, id snowflake.ID) (*Category, error)
	GetMany(ctx context.Context, ids []snowflake.ID) ([]Category, error)
	ListByWorkspace(ctx context.Context, workspaceID snowflake.ID) ([]Category, error)
	Update(ctx context.Context, category Category) error
	Delete(ctx context.Context, workspaceID, id snowflake.ID) error
	CountByNameFold(ctx context.Context, workspaceID snowflake.ID, name string, exclude snowflake.ID) (int64, error)
	CountTasks(ctx context.Context, categoryID snowflake.ID) (int64, error)
}
