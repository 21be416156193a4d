package activation

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/bsma/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("activation.poller",
	fx.Provide(
		fx.Annotate(NewHTTPRegistry, fx.As(new(Registry))),
		NewRunLock,
		New,
	),
	fx.Invoke(Start),
)

// NewRunLock connects to Redis when an address is configured. Without one
// the poller runs unguarded, which is fine for a single replica.
func NewRunLock(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) RunLock {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Named("activation").Info("redis run lock enabled", zap.String("addr", cfg.Redis.Addr))
	return NewRedisLock(client)
}

func Start(lc fx.Lifecycle, poller *Poller) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go poller.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
