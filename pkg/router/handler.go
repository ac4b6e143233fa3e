// Package router dispatches decoded events to registered handlers.
//
// The Router owns one Observer per event category. An Observer tries its
// handlers in registration order and runs the first whose filters all
// match; at most one handler runs per event. Events nobody handles are
// dropped without error.
package router

import (
	"context"

	"greenbot/pkg/filters"
	"greenbot/pkg/notification"
)

// HandlerFunc is a handler callback. Its error is returned to whoever
// routed the event.
type HandlerFunc func(ctx context.Context, n *notification.Notification) error

// Handler pairs a callback with its filters. It is immutable once created.
type Handler struct {
	fn      HandlerFunc
	filters filters.Set
}

// NewHandler creates a handler. Filters follow filters.NewSet rules.
func NewHandler(fn HandlerFunc, fs ...filters.Filter) *Handler {
	return newHandler(fn, filters.NewSet(fs...))
}

func newHandler(fn HandlerFunc, set filters.Set) *Handler {
	return &Handler{fn: fn, filters: set}
}

// Filters returns the handler's filter set.
func (h *Handler) Filters() filters.Set {
	return h.filters
}

// Check reports whether every filter matches n.
func (h *Handler) Check(ctx context.Context, n *notification.Notification) bool {
	return h.filters.Match(ctx, n)
}

// Execute runs the callback if Check passes. It reports whether the handler
// matched, along with the callback's error.
func (h *Handler) Execute(ctx context.Context, n *notification.Notification) (bool, error) {
	if !h.Check(ctx, n) {
		return false, nil
	}
	return true, h.fn(ctx, n)
}
