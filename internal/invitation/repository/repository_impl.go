package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/internal/invitation/domain"
	"github.com/smallbiznis/taskway/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, invitation domain.Invitation) error {
	return r.db.WithContext(ctx).Create(&invitation).Error
}

func (r *repository) Get(ctx context.Context, workspaceID, id snowflake.ID) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).
		First(&invitation, "workspace_id = ? AND id = ?", workspaceID, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).First(&invitation, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) GetPending(ctx context.Context, workspaceID snowflake.ID, email string, now time.Time) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND LOWER(email) = LOWER(?)", workspaceID, email).
		Where("accepted_at IS NULL AND expires_at > ?", now).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) ListByWorkspace(ctx context.Context, workspaceID snowflake.ID, cursor *pagination.Cursor, limit int) ([]domain.Invitation, error) {
	stmt := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC, id DESC")
	if cursor != nil {
		// The cursor carries the timestamp as text; bind it as a time
		// value so every dialect compares it the same way.
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			createdAt, createdAt, cursor.ID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var invitations []domain.Invitation
	if err := stmt.Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repository) MarkAccepted(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ?", id).
		UpdateColumn("accepted_at", at).Error
}

func (r *repository) Delete(ctx context.Context, workspaceID, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Delete(&domain.Invitation{}, "workspace_id = ? AND id = ?", workspaceID, id).Error
}
