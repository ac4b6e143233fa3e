// Package filters provides the predicates a handler uses to decide whether
// it accepts a notification.
//
// Filters never fail: data an event does not carry makes a filter return
// false. A handler accepts a notification when every one of its filters
// matches; an empty set matches everything.
package filters

import (
	"context"

	"greenbot/pkg/notification"
)

// Name identifies a filter type. Names are the keys used in reply rules.
type Name string

const (
	NameFromChat    Name = "from_chat"
	NameFromSender  Name = "from_sender"
	NameTypeMessage Name = "type_message"
	NameTextMessage Name = "text_message"
	NameRegexp      Name = "regexp"
	NameCommand     Name = "command"
	NameState       Name = "state"
	NameStanza      Name = "stanza"
)

// Names lists every known filter name.
var Names = []Name{
	NameFromChat, NameFromSender, NameTypeMessage, NameTextMessage,
	NameRegexp, NameCommand, NameState, NameStanza,
}

// Known reports whether n is a filter name this package builds.
func (n Name) Known() bool {
	for _, name := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Filter is one predicate over a notification.
type Filter interface {
	Name() Name
	Match(ctx context.Context, n *notification.Notification) bool
}

// Set is an ordered list of filters with at most one filter per name.
// The zero value is an empty set that matches everything.
type Set struct {
	filters []Filter
}

// NewSet builds a set from filters in order. A later filter with the same
// name replaces the earlier one in its position; nil filters are skipped.
func NewSet(filters ...Filter) Set {
	var s Set
	for _, f := range filters {
		s = s.With(f)
	}
	return s
}

// With returns a copy of s with f added or replacing the filter of the same name.
func (s Set) With(f Filter) Set {
	if f == nil {
		return s
	}
	out := make([]Filter, len(s.filters), len(s.filters)+1)
	copy(out, s.filters)
	for i, existing := range out {
		if existing.Name() == f.Name() {
			out[i] = f
			return Set{filters: out}
		}
	}
	return Set{filters: append(out, f)}
}

// Get returns the filter registered under name.
func (s Set) Get(name Name) (Filter, bool) {
	for _, f := range s.filters {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Filters returns the filters in evaluation order.
func (s Set) Filters() []Filter {
	out := make([]Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

func (s Set) Len() int { return len(s.filters) }

// Match evaluates filters in order and stops at the first that fails.
func (s Set) Match(ctx context.Context, n *notification.Notification) bool {
	for _, f := range s.filters {
		if !f.Match(ctx, n) {
			return false
		}
	}
	return true
}
