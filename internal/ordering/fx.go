package ordering

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskway/internal/config"
	"go.uber.org/fx"
)

func NewLockerFromConfig(cfg config.Config) *Locker {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return NewLocker(client)
}

var Module = fx.Module("ordering",
	fx.Provide(NewLockerFromConfig),
)
