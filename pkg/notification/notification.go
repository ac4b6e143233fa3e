// Package notification wraps one decoded event for the handler that
// receives it, together with the send capability and the state store.
package notification

import (
	"errors"

	"github.com/tidwall/gjson"

	"greenbot/pkg/api"
	"greenbot/pkg/event"
	"greenbot/pkg/state"
)

var (
	// ErrNoChat is returned by answer helpers for events without a chat.
	ErrNoChat = errors.New("event has no chat to answer")

	// ErrNoSender is returned by state shortcuts for events without a sender.
	ErrNoSender = errors.New("event has no sender")

	// ErrNoAPI is returned by answer helpers when no sender capability is bound.
	ErrNoAPI = errors.New("notification has no api sender")

	// ErrNoStore is returned by state shortcuts when no store is bound.
	ErrNoStore = errors.New("notification has no state store")
)

// Notification is a read-only view over one event. Accessors report absence
// with a false second value and never fail.
type Notification struct {
	Event *event.Event

	api   api.Sender
	store state.Store
}

// New wraps ev. Either capability may be nil; helpers that need it then
// return ErrNoAPI or ErrNoStore.
func New(ev *event.Event, sender api.Sender, store state.Store) *Notification {
	return &Notification{Event: ev, api: sender, store: store}
}

// API returns the bound send capability.
func (n *Notification) API() api.Sender { return n.api }

// Store returns the bound state store.
func (n *Notification) Store() state.Store { return n.store }

// Category returns the typeWebhook tag.
func (n *Notification) Category() event.Category { return n.Event.Type }

// Chat returns the conversation id. Status events have none; calls use the
// caller's id.
func (n *Notification) Chat() (string, bool) {
	switch n.Event.Type {
	case event.OutgoingMessageStatus:
		return "", false
	case event.IncomingCall:
		return nonEmpty(n.Event.From)
	}
	if n.Event.SenderData == nil {
		return "", false
	}
	return nonEmpty(n.Event.SenderData.ChatID)
}

// Sender returns the participant id, which differs from Chat in groups.
func (n *Notification) Sender() (string, bool) {
	switch n.Event.Type {
	case event.OutgoingMessageStatus:
		return "", false
	case event.IncomingCall:
		return nonEmpty(n.Event.From)
	}
	if n.Event.SenderData == nil {
		return "", false
	}
	return nonEmpty(n.Event.SenderData.Sender)
}

// SenderName prefers the name the sender set over the address book name.
func (n *Notification) SenderName() (string, bool) {
	sd := n.Event.SenderData
	if sd == nil {
		return "", false
	}
	if sd.SenderName != "" {
		return sd.SenderName, true
	}
	return nonEmpty(sd.SenderContactName)
}

func (n *Notification) MessageKind() (event.MessageKind, bool) {
	kind := n.Event.Kind()
	return kind, kind != ""
}

// MessageData returns the raw message payload.
func (n *Notification) MessageData() (*event.MessageData, bool) {
	return n.Event.MessageData, n.Event.MessageData != nil
}

// Text returns the body of text, extended text and quoted messages.
func (n *Notification) Text() (string, bool) {
	return n.Event.Text()
}

func (n *Notification) MessageID() (string, bool) {
	return nonEmpty(n.Event.IDMessage)
}

// Status returns the delivery status of status events or the call status of
// incoming calls.
func (n *Notification) Status() (string, bool) {
	return nonEmpty(n.Event.Status)
}

// Get looks up a gjson path in the raw payload, for fields the typed view
// does not model.
func (n *Notification) Get(path string) gjson.Result {
	if len(n.Event.Raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(n.Event.Raw, path)
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}
