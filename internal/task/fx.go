package task

import (
	"github.com/smallbiznis/taskway/internal/task/repository"
	"github.com/smallbiznis/taskway/internal/task/service"
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
