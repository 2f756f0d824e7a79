package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/internal/category/domain"
	"github.com/smallbiznis/taskway/internal/ordering"
	workspacedomain "github.com/smallbiznis/taskway/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxNameLength = 80
	lockTTL       = 5 * time.Second
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type service struct {
	db     *gorm.DB
	repo   domain.Repository
	wsSvc  workspacedomain.Service
	genID  *snowflake.Node
	locker *ordering.Locker
	log    *zap.Logger
}

func NewService(db *gorm.DB, repo domain.Repository, wsSvc workspacedomain.Service, genID *snowflake.Node, locker *ordering.Locker, log *zap.Logger) domain.Service {
	return &service{
		db:     db,
		repo:   repo,
		wsSvc:  wsSvc,
		genID:  genID,
		locker: locker,
		log:    log,
	}
}

func workspaceScope(workspaceID snowflake.ID) ordering.ScopeFilter {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("workspace_id = ?", workspaceID)
	}
}

func (s *service) List(ctx context.Context, userID snowflake.ID, workspaceID string) ([]domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}

	// Listing requires membership only, not a mutating role.
	if _, err := s.wsSvc.ResolveMembership(ctx, wsID, userID); err != nil {
		return nil, err
	}

	categories, err := s.repo.ListByWorkspace(ctx, wsID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(categories))
	for _, category := range categories {
		resp = append(resp, toResponse(category))
	}
	return resp, nil
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, workspaceID string, req domain.CreateRequest) (*domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, domain.ErrInvalidName
	}
	color := strings.TrimSpace(req.Color)
	if !colorPattern.MatchString(color) {
		return nil, domain.ErrInvalidColor
	}

	duplicates, err := s.repo.CountByNameFold(ctx, wsID, name, 0)
	if err != nil {
		return nil, err
	}
	if duplicates > 0 {
		return nil, domain.ErrDuplicateName
	}

	now := time.Now().UTC()
	category := domain.Category{
		ID:          s.genID.Generate(),
		WorkspaceID: wsID,
		Name:        name,
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		position, err := ordering.NextPosition(ctx, tx, domain.Category{}.TableName(), workspaceScope(wsID))
		if err != nil {
			return err
		}
		category.Position = position
		return s.repo.WithTx(tx).Insert(ctx, category)
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(category)
	return &resp, nil
}

func (s *service) Update(ctx context.Context, userID snowflake.ID, workspaceID, categoryID string, req domain.UpdateRequest) (*domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	id, err := parseCategoryID(categoryID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return nil, err
	}

	category, err := s.repo.Get(ctx, wsID, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, domain.ErrInvalidName
		}
		duplicates, err := s.repo.CountByNameFold(ctx, wsID, name, id)
		if err != nil {
			return nil, err
		}
		if duplicates > 0 {
			return nil, domain.ErrDuplicateName
		}
		category.Name = name
	}
	if req.Color != nil {
		color := strings.TrimSpace(*req.Color)
		if !colorPattern.MatchString(color) {
			return nil, domain.ErrInvalidColor
		}
		category.Color = color
	}
	category.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, *category); err != nil {
		return nil, err
	}

	resp := toResponse(*category)
	return &resp, nil
}

func (s *service) Delete(ctx context.Context, userID snowflake.ID, workspaceID, categoryID string) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	id, err := parseCategoryID(categoryID)
	if err != nil {
		return err
	}

	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return err
	}

	category, err := s.repo.Get(ctx, wsID, id)
	if err != nil {
		return err
	}
	if category == nil {
		return domain.ErrNotFound
	}

	// Deliberate guard rail: never cascade tasks away with their category.
	tasks, err := s.repo.CountTasks(ctx, id)
	if err != nil {
		return err
	}
	if tasks > 0 {
		return &domain.InUseError{Count: tasks}
	}

	release, err := s.locker.Guard(ctx, scopeLockKey(wsID), lockTTL)
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Delete(ctx, wsID, id); err != nil {
			return err
		}
		return ordering.CloseGapAfter(ctx, tx, domain.Category{}.TableName(), workspaceScope(wsID), category.Position)
	})
}

func (s *service) Move(ctx context.Context, userID snowflake.ID, workspaceID, categoryID string, targetIndex int) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	id, err := parseCategoryID(categoryID)
	if err != nil {
		return err
	}

	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return err
	}

	release, err := s.locker.Guard(ctx, scopeLockKey(wsID), lockTTL)
	if err != nil {
		return err
	}
	defer release()

	table := domain.Category{}.TableName()
	scope := workspaceScope(wsID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		category, err := repo.Get(ctx, wsID, id)
		if err != nil {
			return err
		}
		if category == nil {
			return domain.ErrNotFound
		}

		var count int64
		if err := scope(tx.WithContext(ctx).Table(table)).Count(&count).Error; err != nil {
			return err
		}
		index := clampIndex(targetIndex, int(count)-1)
		if index == category.Position {
			return nil
		}

		// Same-scope relocation: close the gap the row leaves, make room
		// at the target index, then write the final position.
		if err := ordering.CloseGapAfter(ctx, tx, table, scope, category.Position); err != nil {
			return err
		}
		if err := ordering.ShiftUpFrom(ctx, tx, table, scope, index, id); err != nil {
			return err
		}
		return tx.WithContext(ctx).Table(table).
			Where("id = ?", id).
			UpdateColumn("position", index).Error
	})
}

func (s *service) Reorder(ctx context.Context, userID snowflake.ID, workspaceID string, categoryIDs []string) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return domain.ErrInvalidCategory
	}

	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return err
	}

	ids := make([]snowflake.ID, 0, len(categoryIDs))
	for _, raw := range categoryIDs {
		id, err := parseCategoryID(raw)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	release, err := s.locker.Guard(ctx, scopeLockKey(wsID), lockTTL)
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		categories, err := repo.GetMany(ctx, ids)
		if err != nil {
			return err
		}
		if len(categories) != len(ids) {
			return domain.ErrNotFound
		}
		for _, category := range categories {
			if category.WorkspaceID != wsID {
				return domain.ErrScopeMismatch
			}
		}

		return ordering.Renumber(ctx, tx, domain.Category{}.TableName(), ids)
	})
}

func (s *service) requireMutate(ctx context.Context, workspaceID, userID snowflake.ID) error {
	member, err := s.wsSvc.ResolveMembership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !member.CanMutate() {
		return workspacedomain.NewInsufficientRoleError(member.Role,
			workspacedomain.RoleAdmin, workspacedomain.RoleMember)
	}
	return nil
}

func scopeLockKey(workspaceID snowflake.ID) string {
	return "ordering:categories:" + workspaceID.String()
}

func clampIndex(index, max int) int {
	if index < 0 {
		return 0
	}
	if max < 0 {
		return 0
	}
	if index > max {
		return max
	}
	return index
}

func toResponse(category domain.Category) domain.Response {
	return domain.Response{
		ID:          category.ID.String(),
		WorkspaceID: category.WorkspaceID.String(),
		Name:        category.Name,
		Color:       category.Color,
		Position:    category.Position,
		CreatedAt:   category.CreatedAt,
	}
}

func parseWorkspaceID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, workspacedomain.ErrInvalidWorkspace
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, workspacedomain.ErrInvalidWorkspace
	}
	return id, nil
}

func parseCategoryID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidCategory
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, domain.ErrInvalidCategory
	}
	return id, nil
}
