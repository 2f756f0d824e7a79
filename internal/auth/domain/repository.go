package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateUser(ctx context.Context, user User) error
	GetUserByID(ctx context.Context, id snowflake.ID) (*User, error)
	GetUserByEmailFold(ctx context.Context, email string) (*User, error)
	GetUsersByIDs(ctx context.Context, ids []snowflake.ID) ([]User, error)

	CreateSession(ctx context.Context, session Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
}
