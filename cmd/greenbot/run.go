package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"greenbot/pkg/api"
	"greenbot/pkg/bot"
	"greenbot/pkg/bus"
	"greenbot/pkg/config"
	"greenbot/pkg/gateway"
	"greenbot/pkg/heartbeat"
	"greenbot/pkg/logger"
	"greenbot/pkg/receiver"
	"greenbot/pkg/router"
	"greenbot/pkg/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot in the foreground",
	Long: `Run the bot with the configured receiver.

In polling mode the bot long-polls receiveNotification and deletes each
notification after routing it. In webhook mode it serves the configured
webhook path and lets GREEN-API push notifications to it.

Examples:
  # Long polling with the default config
  greenbot run

  # Explicit config file
  greenbot -c ./greenbot.yaml run`,
	Run: func(cmd *cobra.Command, args []string) {
		newApp(fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info("Bot running",
						zap.String("mode", cfg.Receiver.Mode),
						zap.Int("replies", len(cfg.Replies)))
					log.Info("Press Ctrl+C to stop")
					return nil
				},
			})
		})).Run()
	},
}

// appOptions are the modules of a running bot.
func appOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		logger.Module,
		api.Module,
		state.Module,
		bus.Module,
		router.Module,
		receiver.Module,
		gateway.Module,
		heartbeat.Module,
		bot.Module,

		// Construct the watcher so config hot-reload is active.
		fx.Invoke(func(*config.Watcher) {}),
	}
}

func newApp(extra ...fx.Option) *fx.App {
	return fx.New(append(appOptions(), extra...)...)
}
