package filters

import (
	"errors"
	"fmt"
	"sort"

	"greenbot/pkg/event"
)

var (
	// ErrUnknownFilter is returned by Build for names it does not know.
	// Callers skip such filters.
	ErrUnknownFilter = errors.New("unknown filter")

	// ErrInvalidArgument is returned by Build for arguments of the wrong shape.
	ErrInvalidArgument = errors.New("invalid filter argument")
)

// Build constructs a filter from its name and a loosely typed argument, as
// found in config files. Accepted shapes:
//
//	from_chat, from_sender, type_message, text_message: string or list of strings
//	regexp:  pattern, or [pattern, flags] with flags made of i, m and s
//	command: command, or [command, prefixes]
//	state:   state name, or null for "no state"
//	stanza:  stanza id
func Build(name string, arg any) (Filter, error) {
	switch Name(name) {
	case NameFromChat:
		ids, err := stringList(name, arg)
		if err != nil {
			return nil, err
		}
		return FromChat(ids...), nil

	case NameFromSender:
		ids, err := stringList(name, arg)
		if err != nil {
			return nil, err
		}
		return FromSender(ids...), nil

	case NameTypeMessage:
		values, err := stringList(name, arg)
		if err != nil {
			return nil, err
		}
		kinds := make([]event.MessageKind, len(values))
		for i, v := range values {
			kinds[i] = event.MessageKind(v)
		}
		return TypeMessage(kinds...), nil

	case NameTextMessage:
		texts, err := stringList(name, arg)
		if err != nil {
			return nil, err
		}
		return TextMessage(texts...), nil

	case NameRegexp:
		pattern, flagSpec, err := pair(name, arg, "")
		if err != nil {
			return nil, err
		}
		flags, err := ParseRegexpFlags(flagSpec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, name, err)
		}
		f, err := CompileRegexp(pattern, flags...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return f, nil

	case NameCommand:
		command, prefixes, err := pair(name, arg, DefaultCommandPrefixes)
		if err != nil {
			return nil, err
		}
		return CommandWithPrefixes(command, prefixes), nil

	case NameState:
		if arg == nil {
			return NoState(), nil
		}
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a string or null", ErrInvalidArgument, name)
		}
		return State(s), nil

	case NameStanza:
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a string", ErrInvalidArgument, name)
		}
		return Stanza(s), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
}

// FromConfig builds a Set from a name to argument map. Unknown names are
// returned separately so the caller can report them; any other error aborts.
func FromConfig(cfg map[string]any) (Set, []string, error) {
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		set     Set
		unknown []string
	)
	for _, name := range names {
		f, err := Build(name, cfg[name])
		if errors.Is(err, ErrUnknownFilter) {
			unknown = append(unknown, name)
			continue
		}
		if err != nil {
			return Set{}, unknown, err
		}
		set = set.With(f)
	}
	return set, unknown, nil
}

func stringList(name string, arg any) ([]string, error) {
	switch v := arg.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects strings, got %T", ErrInvalidArgument, name, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s expects a string or a list, got %T", ErrInvalidArgument, name, arg)
}

// pair reads either a single string or a [first, second] list.
func pair(name string, arg any, defaultSecond string) (string, string, error) {
	if s, ok := arg.(string); ok {
		return s, defaultSecond, nil
	}
	values, err := stringList(name, arg)
	if err != nil {
		return "", "", err
	}
	switch len(values) {
	case 1:
		return values[0], defaultSecond, nil
	case 2:
		return values[0], values[1], nil
	}
	return "", "", fmt.Errorf("%w: %s expects one or two values, got %d", ErrInvalidArgument, name, len(values))
}
