package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/smallbiznis/taskway/internal/auth/domain"
	categorydomain "github.com/smallbiznis/taskway/internal/category/domain"
	invitationdomain "github.com/smallbiznis/taskway/internal/invitation/domain"
	"github.com/smallbiznis/taskway/internal/onboarding"
	taskdomain "github.com/smallbiznis/taskway/internal/task/domain"
	"github.com/smallbiznis/taskway/internal/workspace/domain"
	"github.com/smallbiznis/taskway/internal/workspace/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&domain.Workspace{},
		&domain.Membership{},
		&categorydomain.Category{},
		&taskdomain.Task{},
		&taskdomain.TaskAssignee{},
		&invitationdomain.Invitation{},
		&onboarding.Progress{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(db, repository.NewRepository(db), node, zaptest.NewLogger(t))
	return &fixture{db: db, node: node, svc: svc}
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

func (f *fixture) addMember(t *testing.T, wsID, userID snowflake.ID, role string) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Membership{
		ID: f.node.Generate(), WorkspaceID: wsID, UserID: userID,
		Role: role, CreatedAt: time.Now().UTC(),
	}).Error)
}

func (f *fixture) create(t *testing.T, ownerID snowflake.ID, name string) *domain.WorkspaceResponse {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), ownerID, domain.CreateWorkspaceRequest{Name: name})
	require.NoError(t, err)
	return resp
}

func TestCreateWorkspace_SeedsDefaults(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")

	resp := f.create(t, owner, "Acme Inc")
	assert.Equal(t, "acme-inc", resp.Slug)
	assert.Equal(t, domain.RoleAdmin, resp.Role)

	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	var categories []categorydomain.Category
	require.NoError(t, f.db.Where("workspace_id = ?", wsID).Find(&categories).Error)
	require.Len(t, categories, 1)
	assert.Equal(t, "General", categories[0].Name)
	assert.Equal(t, 0, categories[0].Position)

	var tasks int64
	require.NoError(t, f.db.Model(&taskdomain.Task{}).
		Where("workspace_id = ? AND category_id = ?", wsID, categories[0].ID).
		Count(&tasks).Error)
	assert.Equal(t, int64(1), tasks)

	var member domain.Membership
	require.NoError(t, f.db.First(&member, "workspace_id = ? AND user_id = ?", wsID, owner).Error)
	assert.Equal(t, domain.RoleAdmin, member.Role)
}

func TestGetWorkspace_NonMemberDenied(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	stranger := f.addUser(t, "stranger@example.com")
	resp := f.create(t, owner, "Acme")

	_, err := f.svc.GetByID(context.Background(), stranger, resp.ID)
	assert.ErrorIs(t, err, domain.ErrNoAccess)
}

func TestUpdateWorkspace_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	member := f.addUser(t, "member@example.com")
	resp := f.create(t, owner, "Acme")
	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	f.addMember(t, wsID, member, domain.RoleMember)

	name := "Renamed"
	_, err = f.svc.Update(context.Background(), member, resp.ID, domain.UpdateWorkspaceRequest{Name: &name})
	var roleErr *domain.InsufficientRoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, domain.RoleMember, roleErr.Actual)

	updated, err := f.svc.Update(context.Background(), owner, resp.ID, domain.UpdateWorkspaceRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "renamed", updated.Slug)
}

func TestUpdateMemberRole_OwnerIsProtected(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	admin := f.addUser(t, "admin@example.com")
	resp := f.create(t, owner, "Acme")
	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	f.addMember(t, wsID, admin, domain.RoleAdmin)

	err = f.svc.UpdateMemberRole(context.Background(), admin, resp.ID, owner.String(), domain.RoleViewer)
	assert.ErrorIs(t, err, domain.ErrOwnerProtected)
}

func TestUpdateMemberRole_ChangesRole(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	member := f.addUser(t, "member@example.com")
	resp := f.create(t, owner, "Acme")
	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	f.addMember(t, wsID, member, domain.RoleMember)

	require.NoError(t, f.svc.UpdateMemberRole(context.Background(), owner, resp.ID, member.String(), domain.RoleViewer))

	var row domain.Membership
	require.NoError(t, f.db.First(&row, "workspace_id = ? AND user_id = ?", wsID, member).Error)
	assert.Equal(t, domain.RoleViewer, row.Role)
}

func TestRemoveMember_OwnerCannotBeRemoved(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	admin := f.addUser(t, "admin@example.com")
	resp := f.create(t, owner, "Acme")
	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	f.addMember(t, wsID, admin, domain.RoleAdmin)

	err = f.svc.RemoveMember(context.Background(), admin, resp.ID, owner.String())
	assert.ErrorIs(t, err, domain.ErrOwnerProtected)
}

func TestRemoveMember_SelfRemovalAllowed(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	viewer := f.addUser(t, "viewer@example.com")
	resp := f.create(t, owner, "Acme")
	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	f.addMember(t, wsID, viewer, domain.RoleViewer)

	// A viewer cannot remove someone else...
	err = f.svc.RemoveMember(context.Background(), viewer, resp.ID, owner.String())
	var roleErr *domain.InsufficientRoleError
	assert.ErrorAs(t, err, &roleErr)

	// ...but can always leave.
	require.NoError(t, f.svc.RemoveMember(context.Background(), viewer, resp.ID, viewer.String()))

	var count int64
	require.NoError(t, f.db.Model(&domain.Membership{}).
		Where("workspace_id = ? AND user_id = ?", wsID, viewer).
		Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDeleteWorkspace_OwnerOnlyAndCascades(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	admin := f.addUser(t, "admin@example.com")
	resp := f.create(t, owner, "Acme")
	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	f.addMember(t, wsID, admin, domain.RoleAdmin)

	// An admin who is not the owner cannot delete.
	err = f.svc.Delete(context.Background(), admin, resp.ID)
	var roleErr *domain.InsufficientRoleError
	require.ErrorAs(t, err, &roleErr)

	require.NoError(t, f.svc.Delete(context.Background(), owner, resp.ID))

	for model, name := range map[interface{}]string{
		&domain.Workspace{}:       "workspaces",
		&domain.Membership{}:      "memberships",
		&categorydomain.Category{}: "categories",
		&taskdomain.Task{}:        "tasks",
	} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Equal(t, int64(0), count, "%s must be gone", name)
	}
}

func TestListMembers_FlagsOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "owner@example.com")
	member := f.addUser(t, "member@example.com")
	resp := f.create(t, owner, "Acme")
	wsID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	f.addMember(t, wsID, member, domain.RoleMember)

	members, err := f.svc.ListMembers(context.Background(), member, resp.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	byID := make(map[string]domain.MemberResponse, len(members))
	for _, m := range members {
		byID[m.UserID] = m
	}
	assert.True(t, byID[owner.String()].IsOwner)
	assert.False(t, byID[member.String()].IsOwner)
}
