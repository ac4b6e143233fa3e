package state

import (
	"context"
	"io"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"greenbot/pkg/config"
	"greenbot/pkg/logger"
)

// Module is the fx module for conversation state.
var Module = fx.Module("state",
	fx.Provide(NewStore),
)

// ConfigFrom maps the application config onto a state Config.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		Backend:       BackendType(cfg.State.Backend),
		Prefix:        cfg.State.Prefix,
		FilePath:      cfg.StateFilePath(),
		AutoSave:      cfg.State.AutoSave,
		SaveIntervalS: cfg.State.SaveIntervalSeconds,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}
}

// NewStore creates the configured Store for fx and closes it on stop.
func NewStore(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (Store, error) {
	stateCfg := ConfigFrom(cfg)

	store, err := New(context.Background(), log, stateCfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("State store initialized", zap.String("backend", string(stateCfg.Backend)))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if closer, ok := store.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	})

	return store, nil
}
