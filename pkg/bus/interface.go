// Package bus carries raw webhook payloads from transports to the single
// dispatcher that routes them.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Envelope sources.
const (
	SourcePolling = "polling"
	SourceWebhook = "webhook"
	SourceConsole = "console"
	SourceFile    = "file"
)

// ErrStopped is returned by Publish once the bus is stopping.
var ErrStopped = errors.New("bus is stopped")

// Envelope wraps one raw event on its way to the dispatcher.
type Envelope struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	ReceiptID  int64           `json:"receipt_id,omitempty"`
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`

	done chan struct{}
}

// NewEnvelope wraps body with a fresh id.
func NewEnvelope(source string, body []byte) *Envelope {
	return &Envelope{
		ID:         uuid.NewString(),
		Source:     source,
		Body:       body,
		ReceivedAt: time.Now(),
	}
}

// Track returns a channel that is closed once the subscribers of this
// process have handled env. Call it before Publish. Envelopes dropped by a
// stopping bus are never acked.
func (e *Envelope) Track() <-chan struct{} {
	if e.done == nil {
		e.done = make(chan struct{})
	}
	return e.done
}

// Ack closes the Track channel. It is a no-op for untracked envelopes.
func (e *Envelope) Ack() {
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
}

// Handler consumes envelopes. Handlers run on the bus's single consumer
// goroutine, one envelope at a time.
type Handler func(ctx context.Context, env *Envelope) error

// Bus moves envelopes from publishers to subscribers.
type Bus interface {
	Start() error
	Stop() error

	// Subscribe adds a handler. Every handler sees every envelope, in
	// subscription order.
	Subscribe(handler Handler)

	Publish(ctx context.Context, env *Envelope) error

	// GetMetrics returns published, delivered and error counts.
	GetMetrics() map[string]uint64
}
