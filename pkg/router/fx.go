package router

import (
	"go.uber.org/fx"

	"greenbot/pkg/api"
	"greenbot/pkg/logger"
	"greenbot/pkg/state"
)

// Module provides the Router.
var Module = fx.Module("router",
	fx.Provide(ProvideRouter),
)

// ProvideRouter builds the Router for fx.
func ProvideRouter(log *logger.Logger, sender api.Sender, store state.Store) *Router {
	return New(sender, store, WithLogger(log))
}
