package receiver

import (
	"time"

	"go.uber.org/fx"

	"greenbot/pkg/api"
	"greenbot/pkg/bus"
	"greenbot/pkg/config"
	"greenbot/pkg/logger"
)

// Module provides the poller. Its lifecycle belongs to the bot, which
// starts it only in polling mode.
var Module = fx.Module("receiver",
	fx.Provide(ProvidePoller),
)

// ConfigFrom maps the receiver section of cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ReceiveTimeout:  time.Duration(cfg.Receiver.ReceiveTimeoutSeconds) * time.Second,
		RetryDelay:      time.Duration(cfg.Receiver.RetryDelaySeconds) * time.Second,
		DeleteAtStartup: cfg.Receiver.DeleteAtStartup,
	}
}

// ProvidePoller creates the poller for fx.
func ProvidePoller(log *logger.Logger, queue api.Queue, b bus.Bus, cfg *config.Config) *Poller {
	return New(log, queue, b, ConfigFrom(cfg))
}
