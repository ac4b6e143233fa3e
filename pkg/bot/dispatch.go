package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"greenbot/pkg/bus"
	"greenbot/pkg/event"
)

// ErrHandlerPanic wraps a panic recovered from a handler.
var ErrHandlerPanic = errors.New("handler panicked")

// dispatch is the bus subscriber. It decodes the envelope and routes it.
// Errors are returned to the bus, which logs and counts them; with
// stop_on_error the first one also stops the bot.
func (b *Bot) dispatch(ctx context.Context, env *bus.Envelope) (err error) {
	if b.ctx != nil {
		ctx = b.ctx
	}

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Recovered handler panic",
				zap.String("envelope_id", env.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if err != nil {
			err = fmt.Errorf("dispatching %s envelope %s: %w", env.Source, env.ID, err)
			if b.cfg.Receiver.StopOnError && b.cancel != nil && !errors.Is(err, event.ErrMalformed) {
				b.log.Error("Stopping on handler error", zap.Error(err))
				b.cancel(err)
			}
		}
	}()

	ev, err := event.Decode(env.Body)
	if err != nil {
		return err
	}
	return b.router.Route(ctx, ev)
}

// Inject queues payload for routing as if a transport had received it. It
// returns once the envelope is queued, so handlers may call it to feed
// follow-up events without re-entering the router.
func (b *Bot) Inject(ctx context.Context, payload []byte) error {
	env := bus.NewEnvelope(bus.SourceConsole, payload)
	if err := b.bus.Publish(ctx, env); err != nil {
		return fmt.Errorf("injecting envelope %s: %w", env.ID, err)
	}
	return nil
}
