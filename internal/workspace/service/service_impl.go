package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	categorydomain "github.com/smallbiznis/taskway/internal/category/domain"
	taskdomain "github.com/smallbiznis/taskway/internal/task/domain"
	"github.com/smallbiznis/taskway/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNameLength = 120

type service struct {
	db    *gorm.DB
	repo  domain.Repository
	genID *snowflake.Node
	log   *zap.Logger
}

func NewService(db *gorm.DB, repo domain.Repository, genID *snowflake.Node, log *zap.Logger) domain.Service {
	return &service{
		db:    db,
		repo:  repo,
		genID: genID,
		log:   log,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateWorkspaceRequest) (*domain.WorkspaceResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	workspaceID := s.genID.Generate()
	workspace := domain.Workspace{
		ID:        workspaceID,
		Name:      name,
		Slug:      slug.Make(name),
		OwnerID:   userID,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateWorkspace(ctx, workspace); err != nil {
			return err
		}

		member := domain.Membership{
			ID:          s.genID.Generate(),
			WorkspaceID: workspaceID,
			UserID:      userID,
			Role:        domain.RoleAdmin,
			CreatedAt:   now,
		}
		if err := repo.AddMember(ctx, member); err != nil {
			return err
		}

		return s.seedDefaults(ctx, tx, workspaceID, now)
	})
	if err != nil {
		return nil, err
	}

	return &domain.WorkspaceResponse{
		ID:        workspaceID.String(),
		Name:      name,
		Slug:      workspace.Slug,
		OwnerID:   userID.String(),
		Role:      domain.RoleAdmin,
		CreatedAt: now,
	}, nil
}

// seedDefaults gives a fresh workspace one category and a starter task so
// the first screen is never empty.
func (s *service) seedDefaults(ctx context.Context, tx *gorm.DB, workspaceID snowflake.ID, now time.Time) error {
	category := categorydomain.Category{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		Name:        "General",
		Color:       "#6B7280",
		Position:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&category).Error; err != nil {
		return err
	}

	task := taskdomain.Task{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		CategoryID:  &category.ID,
		Title:       "Welcome to your workspace",
		Description: "Invite your team and start organizing work into categories.",
		Priority:    taskdomain.PriorityMedium,
		Status:      taskdomain.StatusTodo,
		Position:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return tx.WithContext(ctx).Create(&task).Error
}

func (s *service) GetByID(ctx context.Context, userID snowflake.ID, workspaceID string) (*domain.WorkspaceResponse, error) {
	id, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}

	member, err := s.ResolveMembership(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	workspace, err := s.repo.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, domain.ErrNotFound
	}

	return &domain.WorkspaceResponse{
		ID:        workspace.ID.String(),
		Name:      workspace.Name,
		Slug:      workspace.Slug,
		OwnerID:   workspace.OwnerID.String(),
		Role:      member.Role,
		CreatedAt: workspace.CreatedAt,
	}, nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.WorkspaceListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListWorkspacesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.WorkspaceListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.WorkspaceListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) Update(ctx context.Context, userID snowflake.ID, workspaceID string, req domain.UpdateWorkspaceRequest) (*domain.WorkspaceResponse, error) {
	id, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}

	member, err := s.ResolveMembership(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !member.IsAdmin() {
		return nil, domain.NewInsufficientRoleError(member.Role, domain.RoleAdmin)
	}

	workspace, err := s.repo.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, domain.ErrInvalidName
		}
		workspace.Name = name
		workspace.Slug = slug.Make(name)
	}
	if req.Metadata != nil {
		workspace.Metadata = req.Metadata
	}
	workspace.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateWorkspace(ctx, *workspace); err != nil {
		return nil, err
	}

	return &domain.WorkspaceResponse{
		ID:        workspace.ID.String(),
		Name:      workspace.Name,
		Slug:      workspace.Slug,
		OwnerID:   workspace.OwnerID.String(),
		Role:      member.Role,
		CreatedAt: workspace.CreatedAt,
	}, nil
}

func (s *service) Delete(ctx context.Context, userID snowflake.ID, workspaceID string) error {
	id, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}

	member, err := s.ResolveMembership(ctx, id, userID)
	if err != nil {
		return err
	}

	workspace, err := s.repo.GetWorkspace(ctx, id)
	if err != nil {
		return err
	}
	if workspace == nil {
		return domain.ErrNotFound
	}
	if workspace.OwnerID != userID {
		return domain.NewInsufficientRoleError(member.Role, "owner")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts := map[string]int64{}
		for _, table := range []string{"task_assignees", "tasks", "categories", "invitations", "onboarding_progress", "memberships"} {
			result := tx.WithContext(ctx).Exec(
				deleteByWorkspaceSQL(table), id,
			)
			if result.Error != nil {
				return result.Error
			}
			counts[table] = result.RowsAffected
		}

		if err := s.repo.WithTx(tx).DeleteWorkspace(ctx, id); err != nil {
			return err
		}

		s.log.Info("workspace deleted",
			zap.String("workspace_id", id.String()),
			zap.Int64("tasks", counts["tasks"]),
			zap.Int64("categories", counts["categories"]),
			zap.Int64("memberships", counts["memberships"]),
			zap.Int64("invitations", counts["invitations"]),
		)
		return nil
	})
}

func deleteByWorkspaceSQL(table string) string {
	if table == "task_assignees" {
		return `DELETE FROM task_assignees WHERE task_id IN (SELECT id FROM tasks WHERE workspace_id = ?)`
	}
	return `DELETE FROM ` + table + ` WHERE workspace_id = ?`
}

func (s *service) ResolveMembership(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Membership, error) {
	if workspaceID == 0 {
		return nil, domain.ErrInvalidWorkspace
	}
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	member, err := s.repo.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNoAccess
	}
	return member, nil
}

func (s *service) ListMembers(ctx context.Context, userID snowflake.ID, workspaceID string) ([]domain.MemberResponse, error) {
	id, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}

	if _, err := s.ResolveMembership(ctx, id, userID); err != nil {
		return nil, err
	}

	workspace, err := s.repo.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.MemberResponse{
			UserID:      item.UserID.String(),
			Email:       item.Email,
			DisplayName: item.DisplayName,
			Role:        item.Role,
			IsOwner:     item.UserID == workspace.OwnerID,
			CreatedAt:   item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) UpdateMemberRole(ctx context.Context, actorID snowflake.ID, workspaceID, targetUserID, role string) error {
	id, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	targetID, err := snowflake.ParseString(strings.TrimSpace(targetUserID))
	if err != nil {
		return domain.ErrInvalidUser
	}
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}

	actor, err := s.ResolveMembership(ctx, id, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.NewInsufficientRoleError(actor.Role, domain.RoleAdmin)
	}

	workspace, err := s.repo.GetWorkspace(ctx, id)
	if err != nil {
		return err
	}
	if workspace == nil {
		return domain.ErrNotFound
	}
	// The owner's role is immutable regardless of who asks.
	if targetID == workspace.OwnerID {
		return domain.ErrOwnerProtected
	}

	target, err := s.repo.GetMembership(ctx, id, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return domain.ErrNoAccess
	}

	return s.repo.UpdateMemberRole(ctx, id, targetID, role)
}

func (s *service) RemoveMember(ctx context.Context, actorID snowflake.ID, workspaceID, targetUserID string) error {
	id, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	targetID, err := snowflake.ParseString(strings.TrimSpace(targetUserID))
	if err != nil {
		return domain.ErrInvalidUser
	}

	actor, err := s.ResolveMembership(ctx, id, actorID)
	if err != nil {
		return err
	}

	// Self-removal is allowed for any role; removing someone else needs admin.
	if targetID != actorID && !actor.IsAdmin() {
		return domain.NewInsufficientRoleError(actor.Role, domain.RoleAdmin)
	}

	workspace, err := s.repo.GetWorkspace(ctx, id)
	if err != nil {
		return err
	}
	if workspace == nil {
		return domain.ErrNotFound
	}
	if targetID == workspace.OwnerID {
		return domain.ErrOwnerProtected
	}

	target, err := s.repo.GetMembership(ctx, id, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return domain.ErrNoAccess
	}

	return s.repo.RemoveMember(ctx, id, targetID)
}

func parseWorkspaceID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidWorkspace
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, domain.ErrInvalidWorkspace
	}
	return id, nil
}
