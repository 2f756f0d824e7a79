package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/internal/category/domain"
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

func (r *repository) Insert(ctx context.Context, category domain.Category) error {
	return r.db.WithContext(ctx).Create(&category).Error
}

func (r *repository) Get(ctx context.Context, workspaceID, id snowflake.ID) (*domain.Category, error) {
	var category domain.Category
	err := r.db.WithContext(ctx).
		First(&category, "workspace_id = ? AND id = ?", workspaceID, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *repository) GetMany(ctx context.Context, ids []snowflake.ID) ([]domain.Category, error) {
	var categories []domain.Category
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) ListByWorkspace(ctx context.Context, workspaceID snowflake.ID) ([]domain.Category, error) {
	var categories []domain.Category
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("position ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) Update(ctx context.Context, category domain.Category) error {
	return r.db.WithContext(ctx).Model(&domain.Category{}).
		Where("id = ?", category.ID).
		Updates(map[string]any{
			"name":       category.Name,
			"color":      category.Color,
			"updated_at": category.UpdatedAt,
		}).Error
}

func (r *repository) Delete(ctx context.Context, workspaceID, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Delete(&domain.Category{}, "workspace_id = ? AND id = ?", workspaceID, id).Error
}

func (r *repository) CountByNameFold(ctx context.Context, workspaceID snowflake.ID, name string, exclude snowflake.ID) (int64, error) {
	var count int64
	stmt := r.db.WithContext(ctx).Model(&domain.Category{}).
		Where("workspace_id = ? AND LOWER(name) = LOWER(?)", workspaceID, name)
	if exclude != 0 {
		stmt = stmt.Where("id <> ?", exclude)
	}
	err := stmt.Count(&count).Error
	return count, err
}

func (r *repository) CountTasks(ctx context.Context, categoryID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("tasks").
		Where("category_id = ?", categoryID).
		Count(&count).Error
	return count, err
}
