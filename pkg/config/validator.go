package config

import (
	"fmt"
	"net/url"
	"strings"

	"greenbot/pkg/logger"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Observer names accepted by reply rules.
var replyObservers = map[string]bool{
	"message":                 true,
	"outgoing_message":        true,
	"outgoing_api_message":    true,
	"outgoing_message_status": true,
	"incoming_call":           true,
	"buttons":                 true,
	"polls":                   true,
	"poll_updates":            true,
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateInstance(&cfg.Instance)
	v.validateReceiver(&cfg.Receiver)
	v.validateWebhook(cfg.Receiver.Mode, &cfg.Webhook)
	v.validateState(&cfg.State, &cfg.Redis)
	v.validateBus(&cfg.Bus, &cfg.Redis)
	v.validateHeartbeat(&cfg.Heartbeat)
	v.validateLogger(&cfg.Logger)
	v.validateReplies(cfg.Replies)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) validateInstance(cfg *InstanceConfig) {
	for field, raw := range map[string]string{
		"instance.api_url":   cfg.APIURL,
		"instance.media_url": cfg.MediaURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			v.addError(field, "must be an absolute URL")
		}
	}

	if cfg.TimeoutSeconds < 1 {
		v.addError("instance.timeout_seconds", "timeout must be at least 1 second")
	}
}

func (v *Validator) validateReceiver(cfg *ReceiverConfig) {
	switch cfg.Mode {
	case ModePolling, ModeWebhook:
	default:
		v.addError("receiver.mode", "mode must be one of: polling, webhook")
	}

	if cfg.ReceiveTimeoutSeconds < 5 || cfg.ReceiveTimeoutSeconds > 60 {
		v.addError("receiver.receive_timeout_seconds", "receive timeout must be between 5 and 60 seconds")
	}
	if cfg.RetryDelaySeconds < 0 {
		v.addError("receiver.retry_delay_seconds", "retry delay must be non-negative")
	}
}

func (v *Validator) validateWebhook(mode string, cfg *WebhookConfig) {
	if mode != ModeWebhook {
		return
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("webhook.port", "port must be between 1 and 65535")
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		v.addError("webhook.path", "path must start with /")
	}
}

func (v *Validator) validateState(cfg *StateConfig, redis *RedisConfig) {
	switch cfg.Backend {
	case "", "memory":
	case "file":
		if strings.TrimSpace(cfg.FilePath) == "" {
			v.addError("state.file_path", "file_path is required for the file backend")
		}
	case "redis":
		if redis.Addr == "" {
			v.addError("redis.addr", "redis address is required for the redis state backend")
		}
	default:
		v.addError("state.backend", "backend must be one of: memory, file, redis")
	}
}

func (v *Validator) validateBus(cfg *BusConfig, redis *RedisConfig) {
	switch cfg.Type {
	case "", "local":
	case "redis":
		if redis.Addr == "" {
			v.addError("redis.addr", "redis address is required for the redis bus")
		}
	default:
		v.addError("bus.type", "type must be one of: local, redis")
	}
	if cfg.BufferSize < 0 {
		v.addError("bus.buffer_size", "buffer size must be non-negative")
	}
}

func (v *Validator) validateHeartbeat(cfg *HeartbeatConfig) {
	if cfg.Enabled && cfg.IntervalSeconds < 10 {
		v.addError("heartbeat.interval_seconds", "interval must be at least 10 seconds")
	}
}

func (v *Validator) validateLogger(cfg *LoggerConfig) {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		v.addError("logger.level", "level must be one of: debug, info, warn, error, fatal")
	}
}

func (v *Validator) validateReplies(rules []ReplyRule) {
	for i, rule := range rules {
		prefix := fmt.Sprintf("replies[%d]", i)
		observer := rule.Observer
		if observer == "" {
			observer = "message"
		}
		if !replyObservers[observer] {
			v.addError(prefix+".observer", fmt.Sprintf("unknown observer %q", rule.Observer))
		}
		if rule.Text == "" && rule.FileURL == "" && rule.SetState == "" && !rule.DeleteState {
			v.addError(prefix, "rule must reply, send a file or change state")
		}
		if rule.SetState != "" && rule.DeleteState {
			v.addError(prefix, "set_state and delete_state are mutually exclusive")
		}
	}
}

// addError adds a validation error.
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// ValidateConfig is a convenience function to validate a configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// RequireInstance reports missing GREEN-API credentials. Commands that never
// talk to the API skip it.
func RequireInstance(cfg *Config) error {
	var errs ValidationErrors
	if strings.TrimSpace(cfg.Instance.IDInstance) == "" {
		errs = append(errs, ValidationError{Field: "instance.id_instance", Message: "id_instance is required"})
	}
	if strings.TrimSpace(cfg.Instance.APITokenInstance) == "" {
		errs = append(errs, ValidationError{Field: "instance.api_token_instance", Message: "api_token_instance is required"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
