package config

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"greenbot/pkg/logger"
)

// Module provides configuration, the logger config derived from it, and the
// hot-reload watcher.
var Module = fx.Module("config",
	fx.Provide(ProvideLoader),
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLoggerConfig),
	fx.Provide(ProvideWatcher),
)

// ProvideLoader provides a configuration loader.
func ProvideLoader() *Loader {
	return NewLoader()
}

// ProvideConfig loads and validates configuration.
func ProvideConfig(loader *Loader) (*Config, error) {
	cfg, err := loader.Load("")
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProvideLoggerConfig exposes the logger section to the logger module.
func ProvideLoggerConfig(cfg *Config) *logger.Config {
	return cfg.Logger.ToLoggerConfig()
}

// ProvideWatcher provides a watcher that re-applies the log level on change.
func ProvideWatcher(loader *Loader, cfg *Config, lc fx.Lifecycle, log *logger.Logger) *Watcher {
	watcher := NewWatcher(loader, cfg, log)

	watcher.AddHandler(func(newCfg *Config) error {
		level, err := logger.ParseLevel(newCfg.Logger.Level)
		if err != nil {
			return err
		}
		if level != log.GetLevel() {
			log.Info("Log level changed",
				zap.String("from", string(log.GetLevel())),
				zap.String("to", string(level)),
			)
		}
		return log.SetLevel(level)
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Debug("Watching configuration", zap.String("file", loader.GetConfigPath()))
			return watcher.Start()
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})

	return watcher
}
