package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskway/internal/clock"
	"github.com/smallbiznis/taskway/internal/config"
	"github.com/smallbiznis/taskway/internal/logger"
	"github.com/smallbiznis/taskway/internal/migration"
	"github.com/smallbiznis/taskway/internal/server"
	"github.com/smallbiznis/taskway/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)

	app.Run()
}

// RegisterSnowflake provides the process-wide ID generator node.
func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
