package category

import (
	"github.com/smallbiznis/taskway/internal/category/repository"
	"github.com/smallbiznis/taskway/internal/category/service"
	"go.uber.org/fx"
)

var Module = fx.Module("category.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
