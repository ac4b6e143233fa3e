// Package replies turns the replies section of the config into router
// handlers, so a bot can answer simple messages without code.
package replies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"greenbot/pkg/api"
	"greenbot/pkg/config"
	"greenbot/pkg/filters"
	"greenbot/pkg/logger"
	"greenbot/pkg/notification"
	"greenbot/pkg/router"
)

// ErrNoAction is returned for a rule that would do nothing.
var ErrNoAction = errors.New("rule must reply, send a file or change state")

// Rule is a compiled reply rule.
type Rule struct {
	cfg     config.ReplyRule
	filters filters.Set
	unknown []string
}

// Name returns the rule name. Register assigns reply-N to unnamed rules.
func (r *Rule) Name() string {
	return r.cfg.Name
}

// Observer returns the observer the rule registers on.
func (r *Rule) Observer() string {
	return r.cfg.Observer
}

// Filters returns the compiled filter set.
func (r *Rule) Filters() filters.Set {
	return r.filters
}

// Unknown lists filter names that were ignored.
func (r *Rule) Unknown() []string {
	return r.unknown
}

// Compile validates a rule and builds its filters. Unknown filter names do
// not fail compilation; they are reported through Unknown.
func Compile(rule config.ReplyRule) (*Rule, error) {
	if rule.Observer == "" {
		rule.Observer = router.ObserverMessage
	}
	if rule.Text == "" && rule.FileURL == "" && rule.SetState == "" && !rule.DeleteState {
		return nil, ErrNoAction
	}

	set, unknown, err := filters.FromConfig(rule.Filters)
	if err != nil {
		return nil, fmt.Errorf("building filters: %w", err)
	}

	return &Rule{cfg: rule, filters: set, unknown: unknown}, nil
}

// Register compiles rules and adds one handler per rule to r, in order.
// Rules are matched in the order they are configured.
func Register(log *logger.Logger, r *router.Router, rules []config.ReplyRule) ([]*Rule, error) {
	log = log.Named("replies")

	compiled := make([]*Rule, 0, len(rules))
	for i, cfg := range rules {
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("reply-%d", i+1)
		}

		rule, err := Compile(cfg)
		if err != nil {
			return nil, fmt.Errorf("reply rule %s: %w", cfg.Name, err)
		}

		registrar, ok := r.Registrar(rule.Observer())
		if !ok {
			return nil, fmt.Errorf("reply rule %s: unknown observer %q", rule.Name(), rule.Observer())
		}

		for _, name := range rule.unknown {
			log.Warn("Ignoring unknown filter",
				zap.String("rule", rule.Name()),
				zap.String("filter", name))
		}

		registrar.AddHandler(rule.handle, rule.filters.Filters()...)
		compiled = append(compiled, rule)

		log.Debug("Registered reply rule",
			zap.String("rule", rule.Name()),
			zap.String("observer", rule.Observer()),
			zap.Int("filters", rule.filters.Len()))
	}

	log.Info("Reply rules registered", zap.Int("count", len(compiled)))
	return compiled, nil
}

// handle performs the rule's actions in a fixed order: state change, text,
// then file.
func (r *Rule) handle(ctx context.Context, n *notification.Notification) error {
	switch {
	case r.cfg.SetState != "":
		if err := n.SetState(ctx, r.cfg.SetState); err != nil {
			return fmt.Errorf("setting state %s: %w", r.cfg.SetState, err)
		}
	case r.cfg.DeleteState:
		if err := n.DeleteState(ctx); err != nil {
			return fmt.Errorf("deleting state: %w", err)
		}
	}

	var opts []api.Option
	if r.cfg.Quote {
		opts = append(opts, api.WithQuote())
	}

	if r.cfg.Text != "" && r.cfg.FileURL == "" {
		if _, err := n.Answer(ctx, Render(r.cfg.Text, n), opts...); err != nil {
			return fmt.Errorf("answering: %w", err)
		}
	}

	if r.cfg.FileURL != "" {
		fileName := r.cfg.FileName
		if fileName == "" {
			fileName = fileNameFromURL(r.cfg.FileURL)
		}
		if _, err := n.AnswerWithFileByURL(ctx, r.cfg.FileURL, fileName, Render(r.cfg.Text, n), opts...); err != nil {
			return fmt.Errorf("sending file: %w", err)
		}
	}

	return nil
}

// Render fills {sender_name}, {chat} and {text} from n. Absent values
// render as empty strings.
func Render(text string, n *notification.Notification) string {
	if !strings.Contains(text, "{") {
		return text
	}

	senderName, _ := n.SenderName()
	chat, _ := n.Chat()
	body, _ := n.Text()

	return strings.NewReplacer(
		"{sender_name}", senderName,
		"{chat}", chat,
		"{text}", body,
	).Replace(text)
}

func fileNameFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "/"); i >= 0 && i < len(u)-1 {
		return u[i+1:]
	}
	return "file"
}
