package gateway

import (
	"go.uber.org/fx"
)

// Module provides the webhook server. The bot starts it in webhook mode.
var Module = fx.Module("gateway",
	fx.Provide(NewServer),
)
