package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/smallbiznis/taskway/internal/auth/domain"
	authrepo "github.com/smallbiznis/taskway/internal/auth/repository"
	categorydomain "github.com/smallbiznis/taskway/internal/category/domain"
	categoryrepo "github.com/smallbiznis/taskway/internal/category/repository"
	"github.com/smallbiznis/taskway/internal/notification"
	"github.com/smallbiznis/taskway/internal/task/domain"
	"github.com/smallbiznis/taskway/internal/task/repository"
	workspacedomain "github.com/smallbiznis/taskway/internal/workspace/domain"
	workspacerepo "github.com/smallbiznis/taskway/internal/workspace/repository"
	workspaceservice "github.com/smallbiznis/taskway/internal/workspace/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	svc   domain.Service
	wsID  snowflake.ID
	admin snowflake.ID
	catX  snowflake.ID
	catY  snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&workspacedomain.Workspace{},
		&workspacedomain.Membership{},
		&categorydomain.Category{},
		&domain.Task{},
		&domain.TaskAssignee{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	wsSvc := workspaceservice.NewService(db, workspacerepo.NewRepository(db), node, log)
	queue := notification.NewQueue(&notification.NoOpProvider{}, log)
	svc := NewService(db, repository.NewRepository(db), categoryrepo.NewRepository(db),
		authrepo.NewRepository(db), wsSvc, node, nil, queue, log)

	f := &fixture{db: db, node: node, svc: svc}
	f.admin = f.addUser(t, "admin@example.com")
	f.wsID = node.Generate()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&workspacedomain.Workspace{
		ID: f.wsID, Name: "Acme", Slug: "acme", OwnerID: f.admin,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	f.addMember(t, f.admin, workspacedomain.RoleAdmin)
	f.catX = f.addCategory(t, "X", 0)
	f.catY = f.addCategory(t, "Y", 1)
	return f
}

func (f *fixture) addUser(t *testing.T, email string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&authdomain.User{
		ID: id, Email: email, DisplayName: email, PasswordHash: "x",
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	return id
}

func (f *fixture) addMember(t *testing.T, userID snowflake.ID, role string) {
	t.Helper()
	require.NoError(t, f.db.Create(&workspacedomain.Membership{
		ID: f.node.Generate(), WorkspaceID: f.wsID, UserID: userID,
		Role: role, CreatedAt: time.Now().UTC(),
	}).Error)
}

func (f *fixture) addCategory(t *testing.T, name string, position int) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&categorydomain.Category{
		ID: id, WorkspaceID: f.wsID, Name: name, Color: "#3B82F6",
		Position: position, CreatedAt: now, UpdatedAt: now,
	}).Error)
	return id
}

func (f *fixture) createTask(t *testing.T, title string, categoryID snowflake.ID) *domain.Response {
	t.Helper()
	req := domain.CreateRequest{Title: title}
	if categoryID != 0 {
		req.CategoryID = categoryID.String()
	}
	resp, err := f.svc.Create(context.Background(), f.admin, f.wsID.String(), req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) categoryOrder(t *testing.T, categoryID snowflake.ID) []string {
	t.Helper()
	var tasks []domain.Task
	require.NoError(t, f.db.
		Where("category_id = ? AND parent_id IS NULL", categoryID).
		Order("position ASC").
		Find(&tasks).Error)
	titles := make([]string, 0, len(tasks))
	for i, task := range tasks {
		require.Equal(t, i, task.Position, "positions must be dense")
		titles = append(titles, task.Title)
	}
	return titles
}

func TestCreateTask_AppendsWithinCategory(t *testing.T) {
	f := newFixture(t)

	a := f.createTask(t, "A", f.catX)
	b := f.createTask(t, "B", f.catX)
	first := f.createTask(t, "D", f.catY)

	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, 0, first.Position, "each category is its own scope")
}

func TestMoveTask_AcrossCategories(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, "A", f.catX)
	b := f.createTask(t, "B", f.catX)
	f.createTask(t, "C", f.catX)
	f.createTask(t, "D", f.catY)

	err := f.svc.Move(context.Background(), f.admin, f.wsID.String(), b.ID, domain.MoveRequest{
		CategoryID: f.catY.String(),
		Position:   0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, f.categoryOrder(t, f.catX))
	assert.Equal(t, []string{"B", "D"}, f.categoryOrder(t, f.catY))
}

func TestMoveTask_WithinCategory(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, "A", f.catX)
	f.createTask(t, "B", f.catX)
	c := f.createTask(t, "C", f.catX)

	err := f.svc.Move(context.Background(), f.admin, f.wsID.String(), c.ID, domain.MoveRequest{
		CategoryID: f.catX.String(),
		Position:   0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A", "B"}, f.categoryOrder(t, f.catX))
}

func TestMoveTask_DetachesToUncategorized(t *testing.T) {
	f := newFixture(t)
	a := f.createTask(t, "A", f.catX)
	f.createTask(t, "B", f.catX)

	err := f.svc.Move(context.Background(), f.admin, f.wsID.String(), a.ID, domain.MoveRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, f.categoryOrder(t, f.catX))

	var moved domain.Task
	require.NoError(t, f.db.First(&moved, "title = ?", "A").Error)
	assert.Nil(t, moved.CategoryID)
}

func TestDeleteTask_CompactsAndCascadesSubtasks(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, "A", f.catX)
	b := f.createTask(t, "B", f.catX)
	f.createTask(t, "C", f.catX)

	sub, err := f.svc.Create(context.Background(), f.admin, f.wsID.String(), domain.CreateRequest{
		Title:    "B.1",
		ParentID: b.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, sub.ParentID)

	require.NoError(t, f.svc.Delete(context.Background(), f.admin, f.wsID.String(), b.ID))

	assert.Equal(t, []string{"A", "C"}, f.categoryOrder(t, f.catX))
	var count int64
	require.NoError(t, f.db.Model(&domain.Task{}).Where("title = ?", "B.1").Count(&count).Error)
	assert.Equal(t, int64(0), count, "subtasks go with their parent")
}

func TestSubtasks_CannotNest(t *testing.T) {
	f := newFixture(t)
	parent := f.createTask(t, "A", f.catX)
	sub, err := f.svc.Create(context.Background(), f.admin, f.wsID.String(), domain.CreateRequest{
		Title:    "A.1",
		ParentID: parent.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.admin, f.wsID.String(), domain.CreateRequest{
		Title:    "A.1.1",
		ParentID: sub.ID,
	})
	assert.ErrorIs(t, err, domain.ErrSubtaskDepth)
}

func TestUpdateTask_CompletedAtTransitions(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, "A", f.catX)
	ctx := context.Background()

	completed := domain.StatusCompleted
	resp, err := f.svc.Update(ctx, f.admin, f.wsID.String(), task.ID, domain.UpdateRequest{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, resp.CompletedAt)
	firstCompletion := *resp.CompletedAt

	// Re-writing the same status must not bump the timestamp.
	resp, err = f.svc.Update(ctx, f.admin, f.wsID.String(), task.ID, domain.UpdateRequest{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, resp.CompletedAt)
	assert.Equal(t, firstCompletion.UnixNano(), resp.CompletedAt.UnixNano())

	todo := domain.StatusTodo
	resp, err = f.svc.Update(ctx, f.admin, f.wsID.String(), task.ID, domain.UpdateRequest{Status: &todo})
	require.NoError(t, err)
	assert.Nil(t, resp.CompletedAt)
}

func TestReorderTasks_RejectsMixedScopes(t *testing.T) {
	f := newFixture(t)
	a := f.createTask(t, "A", f.catX)
	d := f.createTask(t, "D", f.catY)

	err := f.svc.Reorder(context.Background(), f.admin, f.wsID.String(), []string{d.ID, a.ID})
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
}

func TestReorderTasks_RejectsUncategorized(t *testing.T) {
	f := newFixture(t)
	a := f.createTask(t, "A", 0)
	b := f.createTask(t, "B", 0)

	err := f.svc.Reorder(context.Background(), f.admin, f.wsID.String(), []string{b.ID, a.ID})
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
}

func TestSetAssignees_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, "A", f.catX)
	stranger := f.addUser(t, "stranger@example.com")

	err := f.svc.SetAssignees(context.Background(), f.admin, f.wsID.String(), task.ID,
		[]string{stranger.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignee)
}

func TestSetAssignees_ReplacesSet(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, "A", f.catX)
	member := f.addUser(t, "member@example.com")
	f.addMember(t, member, workspacedomain.RoleMember)
	ctx := context.Background()

	require.NoError(t, f.svc.SetAssignees(ctx, f.admin, f.wsID.String(), task.ID,
		[]string{f.admin.String(), member.String()}))

	require.NoError(t, f.svc.SetAssignees(ctx, f.admin, f.wsID.String(), task.ID,
		[]string{member.String()}))

	resp, err := f.svc.Get(ctx, f.admin, f.wsID.String(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{member.String()}, resp.Assignees)
}

func TestViewerCannotMutateTasks(t *testing.T) {
	f := newFixture(t)
	viewer := f.addUser(t, "viewer@example.com")
	f.addMember(t, viewer, workspacedomain.RoleViewer)

	_, err := f.svc.Create(context.Background(), viewer, f.wsID.String(), domain.CreateRequest{
		Title:      "nope",
		CategoryID: f.catX.String(),
	})
	var roleErr *workspacedomain.InsufficientRoleError
	assert.ErrorAs(t, err, &roleErr)
}
