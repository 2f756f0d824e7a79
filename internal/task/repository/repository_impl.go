package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/internal/task/domain"
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

func (r *repository) Insert(ctx context.Context, task domain.Task) error {
	return r.db.WithContext(ctx).Create(&task).Error
}

func (r *repository) Get(ctx context.Context, workspaceID, id snowflake.ID) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).
		First(&task, "workspace_id = ? AND id = ?", workspaceID, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *repository) GetMany(ctx context.Context, ids []snowflake.ID) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repository) ListByWorkspace(ctx context.Context, workspaceID snowflake.ID, filter domain.ListFilter) ([]domain.Task, error) {
	stmt := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID)

	switch {
	case filter.Uncategorized:
		stmt = stmt.Where("category_id IS NULL")
	case filter.CategoryID != nil:
		stmt = stmt.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ParentID != nil {
		stmt = stmt.Where("parent_id = ?", *filter.ParentID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AssigneeID != 0 {
		stmt = stmt.Where("id IN (?)", r.db.
			Table("task_assignees").
			Select("task_id").
			Where("user_id = ?", filter.AssigneeID))
	}

	var tasks []domain.Task
	err := stmt.Order("position ASC, created_at ASC").Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repository) Update(ctx context.Context, task domain.Task) error {
	return r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":        task.Title,
			"description":  task.Description,
			"priority":     task.Priority,
			"status":       task.Status,
			"due_date":     task.DueDate,
			"completed_at": task.CompletedAt,
			"updated_at":   task.UpdatedAt,
		}).Error
}

func (r *repository) Delete(ctx context.Context, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Delete(&domain.Task{}, "id IN ?", ids).Error
}

func (r *repository) ListSubtaskIDs(ctx context.Context, parentID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("parent_id = ?", parentID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) UpdateSubtaskCategory(ctx context.Context, parentID snowflake.ID, categoryID *snowflake.ID) error {
	return r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("parent_id = ?", parentID).
		UpdateColumn("category_id", categoryID).Error
}

func (r *repository) ListAssignees(ctx context.Context, taskID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Model(&domain.TaskAssignee{}).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListAssigneesFor(ctx context.Context, taskIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error) {
	result := make(map[snowflake.ID][]snowflake.ID, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}
	var rows []domain.TaskAssignee
	err := r.db.WithContext(ctx).
		Where("task_id IN ?", taskIDs).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.TaskID] = append(result[row.TaskID], row.UserID)
	}
	return result, nil
}

func (r *repository) ReplaceAssignees(ctx context.Context, taskID snowflake.ID, assignees []domain.TaskAssignee) error {
	err := r.db.WithContext(ctx).
		Delete(&domain.TaskAssignee{}, "task_id = ?", taskID).Error
	if err != nil {
		return err
	}
	if len(assignees) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assignees).Error
}

func (r *repository) DeleteAssignees(ctx context.Context, taskIDs []snowflake.ID) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Delete(&domain.TaskAssignee{}, "task_id IN ?", taskIDs).Error
}
