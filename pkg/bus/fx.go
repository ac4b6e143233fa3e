package bus

import (
	"context"

	"go.uber.org/fx"

	"greenbot/pkg/config"
	"greenbot/pkg/logger"
)

// Module is the fx module for the event bus.
var Module = fx.Module("bus",
	fx.Provide(NewEventBus),
)

// ConfigFrom maps the application config onto a bus Config.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		Type:          BusType(cfg.Bus.Type),
		BufferSize:    cfg.Bus.BufferSize,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   cfg.Bus.Prefix,
	}
}

// NewEventBus creates the bus for fx and ties it to the app lifecycle.
func NewEventBus(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (Bus, error) {
	b, err := NewBus(log, ConfigFrom(cfg))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.Start()
		},
		OnStop: func(ctx context.Context) error {
			return b.Stop()
		},
	})

	return b, nil
}
