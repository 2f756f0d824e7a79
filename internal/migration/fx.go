package migration

import (
	authdomain "github.com/smallbiznis/taskway/internal/auth/domain"
	categorydomain "github.com/smallbiznis/taskway/internal/category/domain"
	"github.com/smallbiznis/taskway/internal/config"
	invitationdomain "github.com/smallbiznis/taskway/internal/invitation/domain"
	"github.com/smallbiznis/taskway/internal/onboarding"
	"github.com/smallbiznis/taskway/internal/seed"
	taskdomain "github.com/smallbiznis/taskway/internal/task/domain"
	workspacedomain "github.com/smallbiznis/taskway/internal/workspace/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres dialects (local sqlite, mysql) derive the
			// schema from the models instead of the SQL migrations.
			err := conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.Session{},
				&workspacedomain.Workspace{},
				&workspacedomain.Membership{},
				&categorydomain.Category{},
				&taskdomain.Task{},
				&taskdomain.TaskAssignee{},
				&invitationdomain.Invitation{},
				&onboarding.Progress{},
			)
			if err != nil {
				return err
			}
		}

		if cfg.BootstrapWorkspace {
			return seed.EnsureBootstrap(conn, cfg)
		}
		return nil
	}),
)
