package logger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides *Logger from a *Config supplied by the config module.
var Module = fx.Module("logger",
	fx.Provide(ProvideLogger),
)

// ProvideLogger builds the application logger and flushes it on stop.
func ProvideLogger(cfg *Config, lc fx.Lifecycle) (*Logger, error) {
	log, err := New(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Debug("Logger initialized",
				zap.String("level", string(cfg.Level)),
				zap.String("output", cfg.OutputPath),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Sync on stdout returns EINVAL on some platforms.
			_ = log.Sync()
			return nil
		},
	})

	return log, nil
}
