// Package onboarding tracks a per-member checklist of first steps inside
// a workspace. Initialization is best-effort: callers log failures and
// move on.
package onboarding

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StepViewedBoard      = "viewed_board"
	StepCreatedFirstTask = "created_first_task"
	StepInvitedTeammate  = "invited_teammate"
)

type Progress struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	WorkspaceID snowflake.ID      `gorm:"uniqueIndex:ux_onboarding_member;not null"`
	UserID      snowflake.ID      `gorm:"uniqueIndex:ux_onboarding_member;not null"`
	Steps       datatypes.JSONMap ``
	CreatedAt   time.Time         ``
	UpdatedAt   time.Time         ``
}

func (Progress) TableName() string {
	return "onboarding_progress"
}

type Service struct {
	db    *gorm.DB
	genID *snowflake.Node
	log   *zap.Logger
}

func NewService(db *gorm.DB, genID *snowflake.Node, log *zap.Logger) *Service {
	return &Service{db: db, genID: genID, log: log}
}

// Initialize seeds the checklist for a new member. Runs on the ambient
// pool, never inside a caller's transaction, and tolerates replays.
func (s *Service) Initialize(ctx context.Context, workspaceID, userID snowflake.ID) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&Progress{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	progress := Progress{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Steps: datatypes.JSONMap{
			StepViewedBoard:      false,
			StepCreatedFirstTask: false,
			StepInvitedTeammate:  false,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).Create(&progress).Error
}

// MarkStep flips one checklist entry. Unknown steps are ignored.
func (s *Service) MarkStep(ctx context.Context, workspaceID, userID snowflake.ID, step string) error {
	var progress Progress
	err := s.db.WithContext(ctx).
		First(&progress, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
	if err != nil {
		return err
	}
	if _, ok := progress.Steps[step]; !ok {
		return nil
	}
	progress.Steps[step] = true
	progress.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(&progress).Error
}
