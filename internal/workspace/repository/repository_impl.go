package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/internal/workspace/domain"
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

func (r *repository) CreateWorkspace(ctx context.Context, workspace domain.Workspace) error {
	return r.db.WithContext(ctx).Create(&workspace).Error
}

func (r *repository) GetWorkspace(ctx context.Context, id snowflake.ID) (*domain.Workspace, error) {
	var workspace domain.Workspace
	err := r.db.WithContext(ctx).First(&workspace, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workspace, nil
}

func (r *repository) UpdateWorkspace(ctx context.Context, workspace domain.Workspace) error {
	return r.db.WithContext(ctx).Model(&domain.Workspace{}).
		Where("id = ?", workspace.ID).
		Updates(map[string]any{
			"name":       workspace.Name,
			"slug":       workspace.Slug,
			"metadata":   workspace.Metadata,
			"updated_at": workspace.UpdatedAt,
		}).Error
}

func (r *repository) DeleteWorkspace(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Workspace{}, "id = ?", id).Error
}

func (r *repository) ListWorkspacesByUser(ctx context.Context, userID snowflake.ID) ([]domain.WorkspaceListItem, error) {
	var items []domain.WorkspaceListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT w.id, w.name, w.slug, m.role, w.created_at
		 FROM workspaces w
		 JOIN memberships m ON m.workspace_id = w.id
		 WHERE m.user_id = ?
		 ORDER BY w.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.Membership) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) GetMembership(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Membership, error) {
	var member domain.Membership
	err := r.db.WithContext(ctx).
		First(&member, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, workspaceID snowflake.ID) ([]domain.MemberListItem, error) {
	var items []domain.MemberListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.user_id, u.email, u.display_name, m.role, m.created_at
		 FROM memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.workspace_id = ?
		 ORDER BY m.created_at ASC`,
		workspaceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) UpdateMemberRole(ctx context.Context, workspaceID, userID snowflake.ID, role string) error {
	return r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Update("role", role).Error
}

func (r *repository) RemoveMember(ctx context.Context, workspaceID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Delete(&domain.Membership{}, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
}
