package heartbeat

import (
	"time"

	"go.uber.org/fx"

	"greenbot/pkg/api"
	"greenbot/pkg/config"
	"greenbot/pkg/logger"
)

// Module is the fx module for heartbeat. The bot owns its lifecycle.
var Module = fx.Module("heartbeat",
	fx.Provide(ProvideHeartbeat),
)

// ConfigFrom maps the heartbeat section of cfg.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		Enabled:  cfg.Heartbeat.Enabled,
		Interval: time.Duration(cfg.Heartbeat.IntervalSeconds) * time.Second,
	}
}

// ProvideHeartbeat creates the heartbeat for fx.
func ProvideHeartbeat(log *logger.Logger, account api.Account, cfg *config.Config) *Heartbeat {
	return New(log, account, ConfigFrom(cfg))
}
