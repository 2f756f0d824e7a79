// Package seed bootstraps a usable install: an admin account and a
// starter workspace so a fresh deployment is not empty.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/smallbiznis/taskway/internal/auth/domain"
	categorydomain "github.com/smallbiznis/taskway/internal/category/domain"
	"github.com/smallbiznis/taskway/internal/config"
	taskdomain "github.com/smallbiznis/taskway/internal/task/domain"
	workspacedomain "github.com/smallbiznis/taskway/internal/workspace/domain"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@taskway.local"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Taskway Admin"
	defaultWorkspaceName = "Main"
)

// EnsureBootstrap creates the bootstrap admin and its starter workspace
// when they do not exist yet. Safe to run on every startup.
func EnsureBootstrap(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	if email == "" {
		email = defaultAdminEmail
	}
	password := cfg.BootstrapAdminPassword
	if password == "" {
		password = defaultAdminPassword
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admin, err := ensureAdminTx(ctx, tx, node, email, password)
		if err != nil {
			return err
		}
		return ensureWorkspaceTx(ctx, tx, node, admin.ID)
	})
}

func ensureAdminTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email, password string) (*authdomain.User, error) {
	var user authdomain.User
	err := tx.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user = authdomain.User{
		ID:           node.Generate(),
		Email:        email,
		DisplayName:  defaultAdminDisplay,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func ensureWorkspaceTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, ownerID snowflake.ID) error {
	var count int64
	err := tx.WithContext(ctx).Model(&workspacedomain.Workspace{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	workspace := workspacedomain.Workspace{
		ID:        node.Generate(),
		Name:      defaultWorkspaceName,
		Slug:      slug.Make(defaultWorkspaceName),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&workspace).Error; err != nil {
		return err
	}

	membership := workspacedomain.Membership{
		ID:          node.Generate(),
		WorkspaceID: workspace.ID,
		UserID:      ownerID,
		Role:        workspacedomain.RoleAdmin,
		CreatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&membership).Error; err != nil {
		return err
	}

	categories := []categorydomain.Category{
		{ID: node.Generate(), WorkspaceID: workspace.ID, Name: "Backlog", Color: "#6B7280", Position: 0, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), WorkspaceID: workspace.ID, Name: "In Progress", Color: "#3B82F6", Position: 1, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), WorkspaceID: workspace.ID, Name: "Done", Color: "#22C55E", Position: 2, CreatedAt: now, UpdatedAt: now},
	}
	if err := tx.WithContext(ctx).Create(&categories).Error; err != nil {
		return err
	}

	tasks := []taskdomain.Task{
		{
			ID:          node.Generate(),
			WorkspaceID: workspace.ID,
			CategoryID:  &categories[0].ID,
			Title:       "Invite your team",
			Description: "Send invitations from the workspace members page.",
			Priority:    taskdomain.PriorityMedium,
			Status:      taskdomain.StatusTodo,
			Position:    0,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          node.Generate(),
			WorkspaceID: workspace.ID,
			CategoryID:  &categories[0].ID,
			Title:       "Create your first task",
			Description: "Tasks keep a dense order inside each category.",
			Priority:    taskdomain.PriorityLow,
			Status:      taskdomain.StatusTodo,
			Position:    1,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	return tx.WithContext(ctx).Create(&tasks).Error
}
