package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/taskway/internal/category/domain"
	"github.com/smallbiznis/taskway/internal/category/repository"
	taskdomain "github.com/smallbiznis/taskway/internal/task/domain"
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
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&workspacedomain.Workspace{},
		&workspacedomain.Membership{},
		&domain.Category{},
		&taskdomain.Task{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	wsSvc := workspaceservice.NewService(db, workspacerepo.NewRepository(db), node, log)
	svc := NewService(db, repository.NewRepository(db), wsSvc, node, nil, log)

	f := &fixture{db: db, node: node, svc: svc}
	f.admin = node.Generate()
	f.wsID = node.Generate()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&workspacedomain.Workspace{
		ID: f.wsID, Name: "Acme", Slug: "acme", OwnerID: f.admin,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	f.addMember(t, f.admin, workspacedomain.RoleAdmin)
	return f
}

func (f *fixture) addMember(t *testing.T, userID snowflake.ID, role string) {
	t.Helper()
	require.NoError(t, f.db.Create(&workspacedomain.Membership{
		ID: f.node.Generate(), WorkspaceID: f.wsID, UserID: userID,
		Role: role, CreatedAt: time.Now().UTC(),
	}).Error)
}

func (f *fixture) create(t *testing.T, name string) *domain.Response {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), f.admin, f.wsID.String(), domain.CreateRequest{
		Name:  name,
		Color: "#3B82F6",
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) positions(t *testing.T) map[string]int {
	t.Helper()
	var categories []domain.Category
	require.NoError(t, f.db.Where("workspace_id = ?", f.wsID).Find(&categories).Error)
	result := make(map[string]int, len(categories))
	for _, category := range categories {
		result[category.Name] = category.Position
	}
	return result
}

func assertDense(t *testing.T, positions map[string]int) {
	t.Helper()
	seen := make(map[int]bool, len(positions))
	for name, pos := range positions {
		assert.False(t, seen[pos], "duplicate position %d (%s)", pos, name)
		seen[pos] = true
		assert.GreaterOrEqual(t, pos, 0)
		assert.Less(t, pos, len(positions))
	}
}

func TestCreateCategory_AppendsAtEnd(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, "Backlog")
	b := f.create(t, "Doing")
	c := f.create(t, "Done")

	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, 2, c.Position)
}

func TestCreateCategory_RejectsDuplicateNameCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Backlog")

	_, err := f.svc.Create(context.Background(), f.admin, f.wsID.String(), domain.CreateRequest{
		Name:  "BACKLOG",
		Color: "#FF0000",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
}

func TestCreateCategory_RejectsBadColor(t *testing.T) {
	f := newFixture(t)

	for _, color := range []string{"", "red", "#FFF", "#GGGGGG", "3B82F6"} {
		_, err := f.svc.Create(context.Background(), f.admin, f.wsID.String(), domain.CreateRequest{
			Name:  "Backlog",
			Color: color,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidColor, "color %q", color)
	}
}

func TestDeleteCategory_BlockedWhileTasksReference(t *testing.T) {
	f := newFixture(t)
	category := f.create(t, "Backlog")
	catID, err := snowflake.ParseString(category.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.db.Create(&taskdomain.Task{
			ID: f.node.Generate(), WorkspaceID: f.wsID, CategoryID: &catID,
			Title: fmt.Sprintf("task %d", i), Priority: taskdomain.PriorityLow,
			Status: taskdomain.StatusTodo, Position: i,
			CreatedAt: now, UpdatedAt: now,
		}).Error)
	}

	err = f.svc.Delete(context.Background(), f.admin, f.wsID.String(), category.ID)
	var inUse *domain.InUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, int64(3), inUse.Count)

	var count int64
	require.NoError(t, f.db.Model(&domain.Category{}).Where("id = ?", catID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "category row must remain")
}

func TestDeleteCategory_CompactsPositions(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Backlog")
	doing := f.create(t, "Doing")
	f.create(t, "Done")

	require.NoError(t, f.svc.Delete(context.Background(), f.admin, f.wsID.String(), doing.ID))

	positions := f.positions(t)
	assert.Equal(t, map[string]int{"Backlog": 0, "Done": 1}, positions)
	assertDense(t, positions)
}

func TestMoveCategory_RepositionsDensely(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Backlog")
	doing := f.create(t, "Doing")
	f.create(t, "Done")

	require.NoError(t, f.svc.Move(context.Background(), f.admin, f.wsID.String(), doing.ID, 2))

	positions := f.positions(t)
	assert.Equal(t, map[string]int{"Backlog": 0, "Done": 1, "Doing": 2}, positions)
	assertDense(t, positions)

	require.NoError(t, f.svc.Move(context.Background(), f.admin, f.wsID.String(), doing.ID, 0))
	positions = f.positions(t)
	assert.Equal(t, map[string]int{"Doing": 0, "Backlog": 1, "Done": 2}, positions)
	assertDense(t, positions)
}

func TestMoveCategory_ClampsTargetIndex(t *testing.T) {
	f := newFixture(t)
	backlog := f.create(t, "Backlog")
	f.create(t, "Doing")

	require.NoError(t, f.svc.Move(context.Background(), f.admin, f.wsID.String(), backlog.ID, 99))
	positions := f.positions(t)
	assert.Equal(t, map[string]int{"Doing": 0, "Backlog": 1}, positions)
}

func TestReorderCategories_AssignsListIndex(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "Backlog")
	b := f.create(t, "Doing")
	c := f.create(t, "Done")

	err := f.svc.Reorder(context.Background(), f.admin, f.wsID.String(), []string{c.ID, a.ID, b.ID})
	require.NoError(t, err)

	positions := f.positions(t)
	assert.Equal(t, map[string]int{"Done": 0, "Backlog": 1, "Doing": 2}, positions)
}

func TestReorderCategories_RejectsForeignWorkspace(t *testing.T) {
	f := newFixture(t)
	mine := f.create(t, "Backlog")

	// A category that lives in someone else's workspace.
	otherWs := f.node.Generate()
	foreign := domain.Category{
		ID: f.node.Generate(), WorkspaceID: otherWs, Name: "Other",
		Color: "#000000", Position: 0,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&foreign).Error)

	err := f.svc.Reorder(context.Background(), f.admin, f.wsID.String(),
		[]string{mine.ID, foreign.ID.String()})
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
}

func TestViewerCannotMutate(t *testing.T) {
	f := newFixture(t)
	viewer := f.node.Generate()
	f.addMember(t, viewer, workspacedomain.RoleViewer)

	_, err := f.svc.Create(context.Background(), viewer, f.wsID.String(), domain.CreateRequest{
		Name:  "Backlog",
		Color: "#3B82F6",
	})
	var roleErr *workspacedomain.InsufficientRoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, workspacedomain.RoleViewer, roleErr.Actual)

	category := f.create(t, "Backlog")
	err = f.svc.Delete(context.Background(), viewer, f.wsID.String(), category.ID)
	assert.ErrorAs(t, err, &roleErr)
}

func TestNonMemberGetsNoAccess(t *testing.T) {
	f := newFixture(t)
	stranger := f.node.Generate()

	_, err := f.svc.List(context.Background(), stranger, f.wsID.String())
	assert.ErrorIs(t, err, workspacedomain.ErrNoAccess)
}
