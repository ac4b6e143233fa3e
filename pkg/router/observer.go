package router

import (
	"context"
	"slices"
	"sync"

	"greenbot/pkg/event"
	"greenbot/pkg/filters"
	"greenbot/pkg/notification"
)

// Registrar accepts handler registrations.
type Registrar interface {
	AddHandler(fn HandlerFunc, fs ...filters.Filter) *Handler
}

// Observer holds the handlers of one event category.
type Observer struct {
	category event.Category
	router   *Router

	mu       sync.RWMutex
	handlers []*Handler
}

func newObserver(category event.Category, r *Router) *Observer {
	return &Observer{category: category, router: r}
}

// Category returns the event category this observer receives.
func (o *Observer) Category() event.Category {
	return o.category
}

// AddHandler appends a handler. Identical registrations are kept; order of
// registration is the order of evaluation.
func (o *Observer) AddHandler(fn HandlerFunc, fs ...filters.Filter) *Handler {
	return o.add(newHandler(fn, filters.NewSet(fs...)))
}

func (o *Observer) add(h *Handler) *Handler {
	o.mu.Lock()
	o.handlers = append(o.handlers, h)
	o.mu.Unlock()
	return h
}

// Handlers returns the registered handlers in order.
func (o *Observer) Handlers() []*Handler {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.handlers)
}

// Propagate offers ev to each handler in order and stops at the first that
// matches. It reports whether a handler ran; a callback error stops
// propagation and is returned as is.
func (o *Observer) Propagate(ctx context.Context, ev *event.Event) (bool, error) {
	n := notification.New(ev, o.router.api, o.router.store)

	for _, h := range o.Handlers() {
		matched, err := h.Execute(ctx, n)
		if matched {
			return true, err
		}
	}
	return false, nil
}

// KindObserver registers on the message observer with the message kind
// restricted to a fixed set. Buttons, polls and poll updates arrive as
// ordinary incoming messages, so they are told apart by kind.
type KindObserver struct {
	kinds  []event.MessageKind
	target *Observer
}

// Kinds returns the message kinds the observer is restricted to.
func (k *KindObserver) Kinds() []event.MessageKind {
	return slices.Clone(k.kinds)
}

// AddHandler registers fn on the message observer. A type_message filter is
// kept when its kinds are a non-empty subset of Kinds; otherwise it is
// replaced by one covering all of Kinds.
func (k *KindObserver) AddHandler(fn HandlerFunc, fs ...filters.Filter) *Handler {
	set := filters.NewSet(fs...)
	if !k.restricts(set) {
		set = set.With(filters.TypeMessage(k.kinds...))
	}
	return k.target.add(newHandler(fn, set))
}

func (k *KindObserver) restricts(set filters.Set) bool {
	f, ok := set.Get(filters.NameTypeMessage)
	if !ok {
		return false
	}
	tm, ok := f.(*filters.TypeMessageFilter)
	if !ok || len(tm.Kinds) == 0 {
		return false
	}
	for _, kind := range tm.Kinds {
		if !slices.Contains(k.kinds, kind) {
			return false
		}
	}
	return true
}
