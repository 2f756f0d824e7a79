package workspace

import (
	"github.com/smallbiznis/taskway/internal/workspace/repository"
	"github.com/smallbiznis/taskway/internal/workspace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
