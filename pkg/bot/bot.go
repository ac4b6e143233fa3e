// Package bot wires the router to a transport and runs it: it prepares the
// instance settings, subscribes the dispatcher to the bus and starts either
// the long-poll receiver or the webhook server.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

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

// ErrAlreadyStarted is returned by Start on a bot that was started before.
// A bot runs once.
var ErrAlreadyStarted = errors.New("bot already started")

// API is the part of GREEN-API the bot needs.
type API interface {
	api.Sender
	api.Queue
	api.Account
}

// Bot runs one instance.
type Bot struct {
	log *logger.Logger
	cfg *config.Config

	api       API
	store     state.Store
	bus       bus.Bus
	router    *router.Router
	poller    *receiver.Poller
	server    *gateway.Server
	heartbeat *heartbeat.Heartbeat
	onFatal   func(error)

	// Components created by New rather than handed in are closed by Stop.
	ownsBus   bool
	ownsStore bool

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelCauseFunc
}

// Option customizes New.
type Option func(*Bot)

// WithAPI replaces the HTTP client built from the instance config.
func WithAPI(a API) Option {
	return func(b *Bot) { b.api = a }
}

// WithStore replaces the configured state store.
func WithStore(s state.Store) Option {
	return func(b *Bot) { b.store = s }
}

// WithBus replaces the configured bus. The caller owns its lifecycle.
func WithBus(eb bus.Bus) Option {
	return func(b *Bot) { b.bus = eb }
}

// WithFatalHandler is called once when the bot stops itself because a
// handler failed and receiver.stop_on_error is set.
func WithFatalHandler(fn func(error)) Option {
	return func(b *Bot) { b.onFatal = fn }
}

// New builds a bot from cfg for library use. Register handlers on Router
// before calling Run.
func New(log *logger.Logger, cfg *config.Config, opts ...Option) (*Bot, error) {
	b := &Bot{log: log.Named("bot"), cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}

	if b.api == nil {
		client, err := api.ProvideClient(log, cfg)
		if err != nil {
			return nil, err
		}
		b.api = client
	}

	if b.store == nil {
		store, err := state.New(context.Background(), log, state.ConfigFrom(cfg))
		if err != nil {
			return nil, fmt.Errorf("creating state store: %w", err)
		}
		b.store = store
		b.ownsStore = true
	}

	if b.bus == nil {
		eb, err := bus.NewBus(log, bus.ConfigFrom(cfg))
		if err != nil {
			b.closeStore()
			return nil, fmt.Errorf("creating bus: %w", err)
		}
		b.bus = eb
		b.ownsBus = true
	}

	b.router = router.New(b.api, b.store, router.WithLogger(log))
	if _, err := replies.Register(log, b.router, cfg.Replies); err != nil {
		b.closeStore()
		return nil, err
	}

	b.setupTransport(
		receiver.New(log, b.api, b.bus, receiver.ConfigFrom(cfg)),
		gateway.NewServer(cfg, log, b.bus),
	)
	b.heartbeat = heartbeat.New(log, b.api, heartbeat.ConfigFrom(cfg))

	return b, nil
}

// setupTransport keeps the transport for the configured mode.
func (b *Bot) setupTransport(poller *receiver.Poller, server *gateway.Server) {
	switch b.cfg.Receiver.Mode {
	case config.ModeWebhook:
		b.server = server
	default:
		b.poller = poller
	}

	if b.server != nil {
		b.server.AddStatus("router", func() any { return b.router.Metrics() })
		b.server.AddStatus("instance", func() any {
			if b.heartbeat == nil {
				return nil
			}
			return b.heartbeat.GetStats()
		})
	}
}

// Router returns the router to register handlers on.
func (b *Bot) Router() *router.Router {
	return b.router
}

// Store returns the conversation state store.
func (b *Bot) Store() state.Store {
	return b.store
}

// Start prepares the instance and starts the transport. The bot keeps
// running after ctx is done; call Stop to end it.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		return ErrAlreadyStarted
	}

	if err := b.prepareInstance(ctx); err != nil {
		return err
	}

	b.ctx, b.cancel = context.WithCancelCause(context.WithoutCancel(ctx))
	b.bus.Subscribe(b.dispatch)

	if b.ownsBus {
		if err := b.bus.Start(); err != nil {
			b.cancel(err)
			return fmt.Errorf("starting bus: %w", err)
		}
	}

	if err := b.startTransport(ctx); err != nil {
		b.cancel(err)
		if b.ownsBus {
			b.bus.Stop()
		}
		return err
	}

	if b.heartbeat != nil {
		b.heartbeat.Start()
	}

	go b.watch()

	b.started = true
	b.log.Info("Bot started",
		zap.String("mode", b.cfg.Receiver.Mode),
		zap.Bool("stop_on_error", b.cfg.Receiver.StopOnError))
	return nil
}

func (b *Bot) startTransport(ctx context.Context) error {
	if b.server != nil {
		if err := b.server.Start(); err != nil {
			return fmt.Errorf("starting webhook server: %w", err)
		}
		return nil
	}
	if b.poller != nil {
		if err := b.poller.Start(ctx); err != nil {
			return fmt.Errorf("starting poller: %w", err)
		}
	}
	return nil
}

// watch reports a fatal stop once.
func (b *Bot) watch() {
	<-b.ctx.Done()
	if err := b.Err(); err != nil && b.onFatal != nil {
		b.onFatal(err)
	}
}

// Stop stops the transport first so no new events arrive, then the bus and
// the store the bot created.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.started = false

	var errs []error
	if b.heartbeat != nil {
		b.heartbeat.Stop()
	}
	if b.server != nil {
		if err := b.server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping webhook server: %w", err))
		}
	}
	if b.poller != nil {
		if err := b.poller.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping poller: %w", err))
		}
	}
	if b.ownsBus {
		if err := b.bus.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping bus: %w", err))
		}
	}

	b.cancel(nil)

	if err := b.closeStore(); err != nil {
		errs = append(errs, err)
	}

	b.log.Info("Bot stopped")
	return errors.Join(errs...)
}

func (b *Bot) closeStore() error {
	if !b.ownsStore {
		return nil
	}
	if closer, ok := b.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing state store: %w", err)
		}
	}
	return nil
}

// Done is closed when the bot stops.
func (b *Bot) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Done()
}

// Err returns the handler error that stopped the bot, or nil after a
// normal stop.
func (b *Bot) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil
	}
	if err := context.Cause(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Run starts the bot and blocks until ctx is done or a handler error stops
// it. It returns that handler error, or nil.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-b.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fatal := b.Err()
	if err := b.Stop(stopCtx); err != nil {
		b.log.Error("Stopping bot", zap.Error(err))
		if fatal == nil {
			return err
		}
	}
	return fatal
}
