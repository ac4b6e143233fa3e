package bot

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"greenbot/pkg/api"
	"greenbot/pkg/bus"
	"greenbot/pkg/config"
	"greenbot/pkg/gateway"
	"greenbot/pkg/heartbeat"
	"greenbot/pkg/logger"
	"greenbot/pkg/receiver"
	"greenbot/pkg/replies"
	"greenbot/pkg/router"
	"greenbot/pkg/state"
)

// Module provides the Bot and ties Start and Stop to the app lifecycle.
// The bus and the state store keep their own lifecycle hooks.
var Module = fx.Module("bot",
	fx.Provide(ProvideBot),
	fx.Invoke(registerLifecycle),
)

// Params are the components the bot is assembled from.
type Params struct {
	fx.In

	Log        *logger.Logger
	Config     *config.Config
	Client     *api.Client
	Store      state.Store
	Bus        bus.Bus
	Router     *router.Router
	Poller     *receiver.Poller
	Server     *gateway.Server
	Heartbeat  *heartbeat.Heartbeat
	Shutdowner fx.Shutdowner
}

// ProvideBot assembles the bot from fx components and registers the
// configured replies on its router.
func ProvideBot(p Params) (*Bot, error) {
	log := p.Log.Named("bot")

	b := &Bot{
		log:       log,
		cfg:       p.Config,
		api:       p.Client,
		store:     p.Store,
		bus:       p.Bus,
		router:    p.Router,
		heartbeat: p.Heartbeat,
		onFatal: func(err error) {
			log.Error("Shutting down after handler error", zap.Error(err))
			p.Shutdowner.Shutdown(fx.ExitCode(1))
		},
	}

	if _, err := replies.Register(p.Log, b.router, p.Config.Replies); err != nil {
		return nil, err
	}
	b.setupTransport(p.Poller, p.Server)

	return b, nil
}

func registerLifecycle(lc fx.Lifecycle, b *Bot) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return b.Stop(ctx)
		},
	})
}
