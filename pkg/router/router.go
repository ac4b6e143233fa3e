package router

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"greenbot/pkg/api"
	"greenbot/pkg/event"
	"greenbot/pkg/logger"
	"greenbot/pkg/state"
)

// Kind sets of the restricted observers.
var (
	ButtonKinds = []event.MessageKind{
		event.ButtonsResponseMessage,
		event.TemplateButtonsReplyMessage,
		event.ListResponseMessage,
		event.InteractiveButtonsResponse,
	}
	PollKinds       = []event.MessageKind{event.PollMessage}
	PollUpdateKinds = []event.MessageKind{event.PollUpdateMessage}
)

// Observer names used by reply rules.
const (
	ObserverMessage               = "message"
	ObserverOutgoingMessage       = "outgoing_message"
	ObserverOutgoingAPIMessage    = "outgoing_api_message"
	ObserverOutgoingMessageStatus = "outgoing_message_status"
	ObserverIncomingCall          = "incoming_call"
	ObserverButtons               = "buttons"
	ObserverPolls                 = "polls"
	ObserverPollUpdates           = "poll_updates"
)

// Metrics counts routing outcomes.
type Metrics struct {
	Routed    int64 `json:"routed"`
	Dropped   int64 `json:"dropped"`
	Handled   int64 `json:"handled"`
	Unhandled int64 `json:"unhandled"`
	Failed    int64 `json:"failed"`
}

// Router owns one Observer per event category.
type Router struct {
	Message               *Observer
	OutgoingMessage       *Observer
	OutgoingAPIMessage    *Observer
	OutgoingMessageStatus *Observer
	IncomingCall          *Observer

	Buttons     *KindObserver
	Polls       *KindObserver
	PollUpdates *KindObserver

	api   api.Sender
	store state.Store
	log   *logger.Logger

	// dispatch serializes Route so at most one event is in flight.
	dispatch sync.Mutex

	routed    atomic.Int64
	dropped   atomic.Int64
	handled   atomic.Int64
	unhandled atomic.Int64
	failed    atomic.Int64
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Router) { r.log = log.Named("router") }
}

// New creates a Router. A nil store is replaced by a MemoryStore; a nil
// sender makes answer helpers fail with notification.ErrNoAPI.
func New(sender api.Sender, store state.Store, opts ...Option) *Router {
	if store == nil {
		store = state.NewMemoryStore()
	}
	r := &Router{api: sender, store: store, log: logger.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	r.Message = newObserver(event.IncomingMessageReceived, r)
	r.OutgoingMessage = newObserver(event.OutgoingMessageReceived, r)
	r.OutgoingAPIMessage = newObserver(event.OutgoingAPIMessageReceived, r)
	r.OutgoingMessageStatus = newObserver(event.OutgoingMessageStatus, r)
	r.IncomingCall = newObserver(event.IncomingCall, r)

	r.Buttons = &KindObserver{kinds: ButtonKinds, target: r.Message}
	r.Polls = &KindObserver{kinds: PollKinds, target: r.Message}
	r.PollUpdates = &KindObserver{kinds: PollUpdateKinds, target: r.Message}

	return r
}

// Store returns the state store handed to notifications.
func (r *Router) Store() state.Store {
	return r.store
}

// Observer returns the observer for a category.
func (r *Router) Observer(category event.Category) (*Observer, bool) {
	switch category {
	case event.IncomingMessageReceived:
		return r.Message, true
	case event.OutgoingMessageReceived:
		return r.OutgoingMessage, true
	case event.OutgoingAPIMessageReceived:
		return r.OutgoingAPIMessage, true
	case event.OutgoingMessageStatus:
		return r.OutgoingMessageStatus, true
	case event.IncomingCall:
		return r.IncomingCall, true
	default:
		return nil, false
	}
}

// Registrar returns the observer registered under a reply rule name.
func (r *Router) Registrar(name string) (Registrar, bool) {
	switch name {
	case ObserverMessage:
		return r.Message, true
	case ObserverOutgoingMessage:
		return r.OutgoingMessage, true
	case ObserverOutgoingAPIMessage:
		return r.OutgoingAPIMessage, true
	case ObserverOutgoingMessageStatus:
		return r.OutgoingMessageStatus, true
	case ObserverIncomingCall:
		return r.IncomingCall, true
	case ObserverButtons:
		return r.Buttons, true
	case ObserverPolls:
		return r.Polls, true
	case ObserverPollUpdates:
		return r.PollUpdates, true
	default:
		return nil, false
	}
}

// Route dispatches ev to the observer of its category. Unknown categories
// and events no handler accepts are dropped with a nil error. The error of
// a failing callback is returned unchanged.
//
// Route holds the router's dispatch lock while the callback runs, so a
// callback must not call Route or RouteRaw on the same Router: that
// deadlocks. Follow-up events go through the bus instead (bot.Inject).
func (r *Router) Route(ctx context.Context, ev *event.Event) error {
	r.dispatch.Lock()
	defer r.dispatch.Unlock()

	obs, ok := r.Observer(ev.Type)
	if !ok {
		r.dropped.Add(1)
		r.log.Debug("Dropping event of unknown category", zap.String("type_webhook", string(ev.Type)))
		return nil
	}
	r.routed.Add(1)

	handled, err := obs.Propagate(ctx, ev)
	switch {
	case err != nil:
		r.failed.Add(1)
	case handled:
		r.handled.Add(1)
	default:
		r.unhandled.Add(1)
		r.log.Debug("No handler matched",
			zap.String("type_webhook", string(ev.Type)),
			zap.String("type_message", string(ev.Kind())))
	}
	return err
}

// RouteRaw decodes payload and routes it. Decoding failures wrap
// event.ErrMalformed. It takes the same lock as Route.
func (r *Router) RouteRaw(ctx context.Context, payload []byte) error {
	ev, err := event.Decode(payload)
	if err != nil {
		return err
	}
	return r.Route(ctx, ev)
}

// Metrics returns a snapshot of the routing counters.
func (r *Router) Metrics() Metrics {
	return Metrics{
		Routed:    r.routed.Load(),
		Dropped:   r.dropped.Load(),
		Handled:   r.handled.Load(),
		Unhandled: r.unhandled.Load(),
		Failed:    r.failed.Load(),
	}
}
