package filters

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"greenbot/pkg/event"
	"greenbot/pkg/notification"
)

// FromChatFilter passes when the conversation id is one of IDs.
type FromChatFilter struct {
	IDs []string
}

func FromChat(ids ...string) *FromChatFilter {
	return &FromChatFilter{IDs: ids}
}

func (f *FromChatFilter) Name() Name { return NameFromChat }

func (f *FromChatFilter) Match(_ context.Context, n *notification.Notification) bool {
	chat, ok := n.Chat()
	return ok && slices.Contains(f.IDs, chat)
}

// FromSenderFilter passes when the sender id is one of IDs.
type FromSenderFilter struct {
	IDs []string
}

func FromSender(ids ...string) *FromSenderFilter {
	return &FromSenderFilter{IDs: ids}
}

func (f *FromSenderFilter) Name() Name { return NameFromSender }

func (f *FromSenderFilter) Match(_ context.Context, n *notification.Notification) bool {
	sender, ok := n.Sender()
	return ok && slices.Contains(f.IDs, sender)
}

// TypeMessageFilter passes when the message kind is one of Kinds.
type TypeMessageFilter struct {
	Kinds []event.MessageKind
}

func TypeMessage(kinds ...event.MessageKind) *TypeMessageFilter {
	return &TypeMessageFilter{Kinds: kinds}
}

func (f *TypeMessageFilter) Name() Name { return NameTypeMessage }

func (f *TypeMessageFilter) Match(_ context.Context, n *notification.Notification) bool {
	kind, ok := n.MessageKind()
	return ok && slices.Contains(f.Kinds, kind)
}

// TextMessageFilter passes when the text body equals one of Texts exactly.
type TextMessageFilter struct {
	Texts []string
}

func TextMessage(texts ...string) *TextMessageFilter {
	return &TextMessageFilter{Texts: texts}
}

func (f *TextMessageFilter) Name() Name { return NameTextMessage }

func (f *TextMessageFilter) Match(_ context.Context, n *notification.Notification) bool {
	text, ok := n.Text()
	return ok && slices.Contains(f.Texts, text)
}

// RegexpFlag changes how a pattern is compiled.
type RegexpFlag int

const (
	IgnoreCase RegexpFlag = 1 << iota
	Multiline
	DotAll
)

// ParseRegexpFlags reads flags written as letters: i, m and s.
func ParseRegexpFlags(s string) ([]RegexpFlag, error) {
	var flags []RegexpFlag
	for _, r := range s {
		switch r {
		case 'i':
			flags = append(flags, IgnoreCase)
		case 'm':
			flags = append(flags, Multiline)
		case 's':
			flags = append(flags, DotAll)
		default:
			return nil, fmt.Errorf("unknown regexp flag %q", r)
		}
	}
	return flags, nil
}

// RegexpFilter passes when the whole text body matches the pattern.
type RegexpFilter struct {
	Pattern string
	re      *regexp.Regexp
}

// CompileRegexp compiles pattern anchored at both ends of the text.
func CompileRegexp(pattern string, flags ...RegexpFlag) (*RegexpFilter, error) {
	var set RegexpFlag
	for _, f := range flags {
		set |= f
	}

	var prefix strings.Builder
	if set&(IgnoreCase|Multiline|DotAll) != 0 {
		prefix.WriteString("(?")
		if set&IgnoreCase != 0 {
			prefix.WriteByte('i')
		}
		if set&Multiline != 0 {
			prefix.WriteByte('m')
		}
		if set&DotAll != 0 {
			prefix.WriteByte('s')
		}
		prefix.WriteByte(')')
	}

	re, err := regexp.Compile(prefix.String() + `\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("compiling regexp filter %q: %w", pattern, err)
	}
	return &RegexpFilter{Pattern: pattern, re: re}, nil
}

// Regexp is like CompileRegexp but panics on an invalid pattern.
func Regexp(pattern string, flags ...RegexpFlag) *RegexpFilter {
	f, err := CompileRegexp(pattern, flags...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *RegexpFilter) Name() Name { return NameRegexp }

func (f *RegexpFilter) Match(_ context.Context, n *notification.Notification) bool {
	text, ok := n.Text()
	return ok && f.re.MatchString(text)
}

// DefaultCommandPrefixes is used by Command.
const DefaultCommandPrefixes = "/"

// CommandFilter passes when the first word of the text body is the command
// preceded by any one of the prefix characters.
type CommandFilter struct {
	Command  string
	Prefixes string
}

func Command(name string) *CommandFilter {
	return CommandWithPrefixes(name, DefaultCommandPrefixes)
}

// CommandWithPrefixes accepts each rune of prefixes as a command prefix.
func CommandWithPrefixes(name, prefixes string) *CommandFilter {
	return &CommandFilter{Command: name, Prefixes: prefixes}
}

func (f *CommandFilter) Name() Name { return NameCommand }

func (f *CommandFilter) Match(_ context.Context, n *notification.Notification) bool {
	text, ok := n.Text()
	if !ok {
		return false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	for _, prefix := range f.Prefixes {
		if fields[0] == string(prefix)+f.Command {
			return true
		}
	}
	return false
}

// StateFilter passes when the sender's state has the given name, or for
// NoState, when the sender has no state. Events without a sender never
// pass.
type StateFilter struct {
	State string
	None  bool
}

func State(name string) *StateFilter {
	return &StateFilter{State: name}
}

func NoState() *StateFilter {
	return &StateFilter{None: true}
}

func (f *StateFilter) Name() Name { return NameState }

func (f *StateFilter) Match(ctx context.Context, n *notification.Notification) bool {
	if _, ok := n.Sender(); !ok {
		return false
	}
	st, ok, err := n.State(ctx)
	if err != nil {
		return false
	}
	if f.None {
		return !ok
	}
	return ok && st.Name == f.State
}

// StanzaFilter passes for poll updates of the poll with the given stanza id.
type StanzaFilter struct {
	StanzaID string
}

func Stanza(id string) *StanzaFilter {
	return &StanzaFilter{StanzaID: id}
}

func (f *StanzaFilter) Name() Name { return NameStanza }

func (f *StanzaFilter) Match(_ context.Context, n *notification.Notification) bool {
	id, ok := n.Event.PollStanzaID()
	return ok && id == f.StanzaID
}
