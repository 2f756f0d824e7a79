package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskway/internal/auth/domain"
	categorydomain "github.com/smallbiznis/taskway/internal/category/domain"
	"github.com/smallbiznis/taskway/internal/notification"
	"github.com/smallbiznis/taskway/internal/ordering"
	"github.com/smallbiznis/taskway/internal/task/domain"
	workspacedomain "github.com/smallbiznis/taskway/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxTitleLength = 200
	dueDateLayout  = "2006-01-02"
	lockTTL        = 5 * time.Second
)

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	catRepo categorydomain.Repository
	users   authdomain.Repository
	wsSvc   workspacedomain.Service
	genID   *snowflake.Node
	locker  *ordering.Locker
	queue   *notification.Queue
	log     *zap.Logger
}

func NewService(db *gorm.DB, repo domain.Repository, catRepo categorydomain.Repository,
	users authdomain.Repository, wsSvc workspacedomain.Service, genID *snowflake.Node,
	locker *ordering.Locker, queue *notification.Queue, log *zap.Logger) domain.Service {
	return &service{
		db:      db,
		repo:    repo,
		catRepo: catRepo,
		users:   users,
		wsSvc:   wsSvc,
		genID:   genID,
		locker:  locker,
		queue:   queue,
		log:     log,
	}
}

// taskScope resolves the ordered collection a task belongs to: subtasks
// order under their parent, top-level tasks under their category.
// Uncategorized top-level tasks have no scope and no position arithmetic.
func taskScope(task domain.Task) ordering.ScopeFilter {
	if task.ParentID != nil {
		return parentScope(*task.ParentID)
	}
	if task.CategoryID != nil {
		return categoryScope(*task.CategoryID)
	}
	return nil
}

func categoryScope(categoryID snowflake.ID) ordering.ScopeFilter {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("category_id = ? AND parent_id IS NULL", categoryID)
	}
}

func parentScope(parentID snowflake.ID) ordering.ScopeFilter {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("parent_id = ?", parentID)
	}
}

func (s *service) List(ctx context.Context, userID snowflake.ID, workspaceID string, req domain.ListRequest) ([]domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.wsSvc.ResolveMembership(ctx, wsID, userID); err != nil {
		return nil, err
	}

	filter := domain.ListFilter{Status: strings.TrimSpace(req.Status)}
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		return nil, domain.ErrInvalidStatus
	}
	switch raw := strings.TrimSpace(req.CategoryID); raw {
	case "":
	case "none":
		filter.Uncategorized = true
	default:
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, categorydomain.ErrInvalidCategory
		}
		filter.CategoryID = &id
	}
	if raw := strings.TrimSpace(req.ParentID); raw != "" {
		id, err := parseTaskID(raw)
		if err != nil {
			return nil, err
		}
		filter.ParentID = &id
	}
	if raw := strings.TrimSpace(req.AssigneeID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, workspacedomain.ErrInvalidUser
		}
		filter.AssigneeID = id
	}

	tasks, err := s.repo.ListByWorkspace(ctx, wsID, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assignees, err := s.repo.ListAssigneesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, toResponse(task, assignees[task.ID]))
	}
	return resp, nil
}

func (s *service) Get(ctx context.Context, userID snowflake.ID, workspaceID, taskID string) (*domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	id, err := parseTaskID(taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.wsSvc.ResolveMembership(ctx, wsID, userID); err != nil {
		return nil, err
	}

	task, err := s.repo.Get(ctx, wsID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	assignees, err := s.repo.ListAssignees(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(*task, assignees)
	return &resp, nil
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, workspaceID string, req domain.CreateRequest) (*domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, domain.ErrInvalidTitle
	}

	priority := strings.TrimSpace(req.Priority)
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.ErrInvalidPriority
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = domain.StatusTodo
	}
	if !domain.ValidStatus(status) {
		return nil, domain.ErrInvalidStatus
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:          s.genID.Generate(),
		WorkspaceID: wsID,
		Title:       title,
		Description: req.Description,
		Priority:    priority,
		Status:      status,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == domain.StatusCompleted {
		task.CompletedAt = &now
	}

	if raw := strings.TrimSpace(req.ParentID); raw != "" {
		parentID, err := parseTaskID(raw)
		if err != nil {
			return nil, err
		}
		parent, err := s.repo.Get(ctx, wsID, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, domain.ErrNotFound
		}
		if parent.ParentID != nil {
			return nil, domain.ErrSubtaskDepth
		}
		if strings.TrimSpace(req.CategoryID) != "" {
			return nil, domain.ErrSubtaskCategory
		}
		task.ParentID = &parent.ID
		task.CategoryID = parent.CategoryID
	} else if raw := strings.TrimSpace(req.CategoryID); raw != "" {
		catID, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, categorydomain.ErrInvalidCategory
		}
		category, err := s.catRepo.Get(ctx, wsID, catID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, categorydomain.ErrNotFound
		}
		task.CategoryID = &category.ID
	}

	assigneeIDs, assigneeUsers, err := s.resolveAssignees(ctx, wsID, req.Assignees)
	if err != nil {
		return nil, err
	}

	scope := taskScope(task)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if scope != nil {
			position, err := ordering.NextPosition(ctx, tx, domain.Task{}.TableName(), scope)
			if err != nil {
				return err
			}
			task.Position = position
		}
		if err := repo.Insert(ctx, task); err != nil {
			return err
		}
		if len(assigneeIDs) > 0 {
			rows := make([]domain.TaskAssignee, 0, len(assigneeIDs))
			for _, uid := range assigneeIDs {
				rows = append(rows, domain.TaskAssignee{
					ID:        s.genID.Generate(),
					TaskID:    task.ID,
					UserID:    uid,
					CreatedAt: now,
				})
			}
			return repo.ReplaceAssignees(ctx, task.ID, rows)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAssigned(ctx, wsID, task.Title, assigneeUsers)

	resp := toResponse(task, assigneeIDs)
	return &resp, nil
}

func (s *service) Update(ctx context.Context, userID snowflake.ID, workspaceID, taskID string, req domain.UpdateRequest) (*domain.Response, error) {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return nil, err
	}
	id, err := parseTaskID(taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return nil, err
	}

	task, err := s.repo.Get(ctx, wsID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || len(title) > maxTitleLength {
			return nil, domain.ErrInvalidTitle
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		if !domain.ValidPriority(*req.Priority) {
			return nil, domain.ErrInvalidPriority
		}
		task.Priority = *req.Priority
	}
	now := time.Now().UTC()
	if req.Status != nil {
		status := *req.Status
		if !domain.ValidStatus(status) {
			return nil, domain.ErrInvalidStatus
		}
		// completed_at tracks the transition into and out of completed,
		// not repeated writes of the same status.
		if status == domain.StatusCompleted && task.Status != domain.StatusCompleted {
			task.CompletedAt = &now
		}
		if status != domain.StatusCompleted && task.Status == domain.StatusCompleted {
			task.CompletedAt = nil
		}
		task.Status = status
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			task.DueDate = nil
		} else {
			dueDate, err := parseDueDate(*req.DueDate)
			if err != nil {
				return nil, err
			}
			task.DueDate = dueDate
		}
	}
	task.UpdatedAt = now

	if err := s.repo.Update(ctx, *task); err != nil {
		return nil, err
	}
	assignees, err := s.repo.ListAssignees(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(*task, assignees)
	return &resp, nil
}

func (s *service) Delete(ctx context.Context, userID snowflake.ID, workspaceID, taskID string) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	id, err := parseTaskID(taskID)
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

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := repo.Get(ctx, wsID, id)
		if err != nil {
			return err
		}
		if task == nil {
			return domain.ErrNotFound
		}

		// Subtasks go with their parent. Their scope disappears with it,
		// so no compaction is needed below the parent.
		subtaskIDs, err := repo.ListSubtaskIDs(ctx, id)
		if err != nil {
			return err
		}
		victims := append(subtaskIDs, id)

		if err := repo.DeleteAssignees(ctx, victims); err != nil {
			return err
		}
		if err := repo.Delete(ctx, victims); err != nil {
			return err
		}
		if scope := taskScope(*task); scope != nil {
			return ordering.CloseGapAfter(ctx, tx, domain.Task{}.TableName(), scope, task.Position)
		}
		return nil
	})
}

func (s *service) Move(ctx context.Context, userID snowflake.ID, workspaceID, taskID string, req domain.MoveRequest) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	id, err := parseTaskID(taskID)
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

	table := domain.Task{}.TableName()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := repo.Get(ctx, wsID, id)
		if err != nil {
			return err
		}
		if task == nil {
			return domain.ErrNotFound
		}

		if task.ParentID != nil {
			if strings.TrimSpace(req.CategoryID) != "" {
				return domain.ErrSubtaskCategory
			}
			return s.moveWithinScope(ctx, tx, *task, parentScope(*task.ParentID), req.Position)
		}

		var targetCategoryID *snowflake.ID
		if raw := strings.TrimSpace(req.CategoryID); raw != "" {
			catID, err := snowflake.ParseString(raw)
			if err != nil {
				return categorydomain.ErrInvalidCategory
			}
			category, err := s.catRepo.WithTx(tx).Get(ctx, wsID, catID)
			if err != nil {
				return err
			}
			if category == nil {
				return categorydomain.ErrNotFound
			}
			targetCategoryID = &category.ID
		}

		sameScope := (task.CategoryID == nil && targetCategoryID == nil) ||
			(task.CategoryID != nil && targetCategoryID != nil && *task.CategoryID == *targetCategoryID)

		if sameScope {
			if targetCategoryID == nil {
				return nil
			}
			return s.moveWithinScope(ctx, tx, *task, categoryScope(*targetCategoryID), req.Position)
		}

		sourceScope := taskScope(*task)

		if targetCategoryID == nil {
			// Detaching from any category: no target ordering to maintain.
			err := tx.WithContext(ctx).Table(table).
				Where("id = ?", id).
				Updates(map[string]any{"category_id": nil, "position": 0}).Error
			if err != nil {
				return err
			}
		} else {
			target := categoryScope(*targetCategoryID)
			var count int64
			if err := target(tx.WithContext(ctx).Table(table)).Count(&count).Error; err != nil {
				return err
			}
			index := clampIndex(req.Position, int(count))

			// Cross-scope relocation runs in this exact order: write the
			// moved row first, shift the target scope around it, then close
			// the source gap.
			err := tx.WithContext(ctx).Table(table).
				Where("id = ?", id).
				Updates(map[string]any{"category_id": *targetCategoryID, "position": index}).Error
			if err != nil {
				return err
			}
			if err := ordering.ShiftUpFrom(ctx, tx, table, target, index, id); err != nil {
				return err
			}
		}

		if sourceScope != nil {
			if err := ordering.CloseGapAfter(ctx, tx, table, sourceScope, task.Position); err != nil {
				return err
			}
		}
		// Subtasks follow their parent's category.
		return repo.UpdateSubtaskCategory(ctx, id, targetCategoryID)
	})
}

func (s *service) moveWithinScope(ctx context.Context, tx *gorm.DB, task domain.Task, scope ordering.ScopeFilter, targetIndex int) error {
	table := domain.Task{}.TableName()
	var count int64
	if err := scope(tx.WithContext(ctx).Table(table)).Count(&count).Error; err != nil {
		return err
	}
	index := clampIndex(targetIndex, int(count)-1)
	if index == task.Position {
		return nil
	}
	if err := ordering.CloseGapAfter(ctx, tx, table, scope, task.Position); err != nil {
		return err
	}
	if err := ordering.ShiftUpFrom(ctx, tx, table, scope, index, task.ID); err != nil {
		return err
	}
	return tx.WithContext(ctx).Table(table).
		Where("id = ?", task.ID).
		UpdateColumn("position", index).Error
}

func (s *service) Reorder(ctx context.Context, userID snowflake.ID, workspaceID string, taskIDs []string) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	if len(taskIDs) == 0 {
		return domain.ErrInvalidTask
	}
	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return err
	}

	ids := make([]snowflake.ID, 0, len(taskIDs))
	for _, raw := range taskIDs {
		id, err := parseTaskID(raw)
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
		tasks, err := repo.GetMany(ctx, ids)
		if err != nil {
			return err
		}
		if len(tasks) != len(ids) {
			return domain.ErrNotFound
		}
		first := tasks[0]
		if first.WorkspaceID != wsID {
			return domain.ErrScopeMismatch
		}
		if taskScope(first) == nil {
			return domain.ErrScopeMismatch
		}
		for _, task := range tasks[1:] {
			if task.WorkspaceID != wsID || !sameScope(first, task) {
				return domain.ErrScopeMismatch
			}
		}
		return ordering.Renumber(ctx, tx, domain.Task{}.TableName(), ids)
	})
}

func sameScope(a, b domain.Task) bool {
	if (a.ParentID == nil) != (b.ParentID == nil) {
		return false
	}
	if a.ParentID != nil {
		return *a.ParentID == *b.ParentID
	}
	if (a.CategoryID == nil) != (b.CategoryID == nil) {
		return false
	}
	if a.CategoryID != nil {
		return *a.CategoryID == *b.CategoryID
	}
	return false // two uncategorized tasks share no ordered scope
}

func (s *service) SetAssignees(ctx context.Context, userID snowflake.ID, workspaceID, taskID string, assigneeIDs []string) error {
	wsID, err := parseWorkspaceID(workspaceID)
	if err != nil {
		return err
	}
	id, err := parseTaskID(taskID)
	if err != nil {
		return err
	}
	if err := s.requireMutate(ctx, wsID, userID); err != nil {
		return err
	}

	task, err := s.repo.Get(ctx, wsID, id)
	if err != nil {
		return err
	}
	if task == nil {
		return domain.ErrNotFound
	}

	previous, err := s.repo.ListAssignees(ctx, id)
	if err != nil {
		return err
	}
	existing := make(map[snowflake.ID]bool, len(previous))
	for _, uid := range previous {
		existing[uid] = true
	}

	ids, users, err := s.resolveAssignees(ctx, wsID, assigneeIDs)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rows := make([]domain.TaskAssignee, 0, len(ids))
	for _, uid := range ids {
		rows = append(rows, domain.TaskAssignee{
			ID:        s.genID.Generate(),
			TaskID:    id,
			UserID:    uid,
			CreatedAt: now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).ReplaceAssignees(ctx, id, rows)
	})
	if err != nil {
		return err
	}

	// Only newly added assignees are notified, after the commit.
	added := make([]authdomain.User, 0, len(users))
	for _, user := range users {
		if !existing[user.ID] {
			added = append(added, user)
		}
	}
	s.notifyAssigned(ctx, wsID, task.Title, added)
	return nil
}

func (s *service) resolveAssignees(ctx context.Context, wsID snowflake.ID, raw []string) ([]snowflake.ID, []authdomain.User, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}
	seen := make(map[snowflake.ID]bool, len(raw))
	ids := make([]snowflake.ID, 0, len(raw))
	for _, item := range raw {
		uid, err := snowflake.ParseString(strings.TrimSpace(item))
		if err != nil {
			return nil, nil, domain.ErrInvalidAssignee
		}
		if seen[uid] {
			continue
		}
		seen[uid] = true
		if _, err := s.wsSvc.ResolveMembership(ctx, wsID, uid); err != nil {
			return nil, nil, domain.ErrInvalidAssignee
		}
		ids = append(ids, uid)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return ids, users, nil
}

func (s *service) notifyAssigned(ctx context.Context, wsID snowflake.ID, title string, users []authdomain.User) {
	if len(users) == 0 {
		return
	}
	workspaceName := ""
	if ws, err := s.wsSvc.GetByID(ctx, users[0].ID, wsID.String()); err == nil {
		workspaceName = ws.Name
	}
	for _, user := range users {
		s.queue.Enqueue(notification.Message{
			Kind: notification.KindTaskAssigned,
			To:   user.Email,
			Data: map[string]string{
				"task_title":     title,
				"workspace_name": workspaceName,
			},
		})
	}
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
	return "ordering:tasks:" + workspaceID.String()
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

func parseDueDate(raw string) (*datatypes.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return nil, domain.ErrInvalidDueDate
	}
	date := datatypes.Date(parsed)
	return &date, nil
}

func toResponse(task domain.Task, assignees []snowflake.ID) domain.Response {
	resp := domain.Response{
		ID:          task.ID.String(),
		WorkspaceID: task.WorkspaceID.String(),
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		Status:      task.Status,
		Position:    task.Position,
		Assignees:   make([]string, 0, len(assignees)),
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.CategoryID != nil {
		id := task.CategoryID.String()
		resp.CategoryID = &id
	}
	if task.ParentID != nil {
		id := task.ParentID.String()
		resp.ParentID = &id
	}
	if task.DueDate != nil {
		formatted := time.Time(*task.DueDate).Format(dueDateLayout)
		resp.DueDate = &formatted
	}
	for _, uid := range assignees {
		resp.Assignees = append(resp.Assignees, uid.String())
	}
	return resp
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

func parseTaskID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidTask
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, domain.ErrInvalidTask
	}
	return id, nil
}
