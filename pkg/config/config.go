// Package config provides configuration management for greenbot.
// It uses Viper for loading with support for:
// - JSON, YAML or TOML files
// - GREENBOT_* environment variables
// - Hot-reload through a file watcher
// - Default values
package config

import (
	"os"
	"path/filepath"
	"sync"
)

// Config represents the complete greenbot configuration.
type Config struct {
	Instance  InstanceConfig  `mapstructure:"instance" json:"instance"`
	Receiver  ReceiverConfig  `mapstructure:"receiver" json:"receiver"`
	Webhook   WebhookConfig   `mapstructure:"webhook" json:"webhook"`
	State     StateConfig     `mapstructure:"state" json:"state"`
	Redis     RedisConfig     `mapstructure:"redis" json:"redis"`
	Bus       BusConfig       `mapstructure:"bus" json:"bus"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat" json:"heartbeat"`
	Logger    LoggerConfig    `mapstructure:"logger" json:"logger"`
	Replies   []ReplyRule     `mapstructure:"replies" json:"replies"`
	mu        sync.RWMutex
}

// InstanceConfig identifies the GREEN-API instance.
type InstanceConfig struct {
	IDInstance       string `mapstructure:"id_instance" json:"id_instance"`
	APITokenInstance string `mapstructure:"api_token_instance" json:"api_token_instance"`
	APIURL           string `mapstructure:"api_url" json:"api_url"`
	MediaURL         string `mapstructure:"media_url" json:"media_url"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`

	// UpdateSettings enables incoming and outgoing webhooks on start when all
	// of them are switched off on the account.
	UpdateSettings bool `mapstructure:"update_settings" json:"update_settings"`

	// Settings are applied verbatim through setSettings on start.
	Settings map[string]interface{} `mapstructure:"settings" json:"settings"`
}

// Receiver modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// ReceiverConfig controls how events reach the router.
type ReceiverConfig struct {
	Mode                  string `mapstructure:"mode" json:"mode"`
	ReceiveTimeoutSeconds int    `mapstructure:"receive_timeout_seconds" json:"receive_timeout_seconds"`
	RetryDelaySeconds     int    `mapstructure:"retry_delay_seconds" json:"retry_delay_seconds"`
	DeleteAtStartup       bool   `mapstructure:"delete_at_startup" json:"delete_at_startup"`
	StopOnError           bool   `mapstructure:"stop_on_error" json:"stop_on_error"`
}

// WebhookConfig for the webhook HTTP server.
type WebhookConfig struct {
	Host              string `mapstructure:"host" json:"host"`
	Port              int    `mapstructure:"port" json:"port"`
	Path              string `mapstructure:"path" json:"path"`
	AuthToken         string `mapstructure:"auth_token" json:"auth_token"`
	EnableEventStream bool   `mapstructure:"enable_event_stream" json:"enable_event_stream"`
}

// StateConfig selects the conversation state backend.
type StateConfig struct {
	Backend             string `mapstructure:"backend" json:"backend"` // memory, file, redis
	FilePath            string `mapstructure:"file_path" json:"file_path"`
	Prefix              string `mapstructure:"prefix" json:"prefix"`
	AutoSave            bool   `mapstructure:"auto_save" json:"auto_save"`
	SaveIntervalSeconds int    `mapstructure:"save_interval_seconds" json:"save_interval_seconds"`
}

// RedisConfig is shared by the redis state backend and the redis bus.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// BusConfig selects the event bus.
type BusConfig struct {
	Type       string `mapstructure:"type" json:"type"` // local, redis
	Prefix     string `mapstructure:"prefix" json:"prefix"`
	BufferSize int    `mapstructure:"buffer_size" json:"buffer_size"`
}

// HeartbeatConfig controls the periodic getStateInstance check.
type HeartbeatConfig struct {
	Enabled         bool `mapstructure:"enabled" json:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds" json:"interval_seconds"`
}

// LoggerConfig mirrors logger.Config in file form.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress"`
	Development bool   `mapstructure:"development" json:"development"`
}

// ReplyRule is one declarative auto-reply.
type ReplyRule struct {
	Name        string                 `mapstructure:"name" json:"name"`
	Observer    string                 `mapstructure:"observer" json:"observer"`
	Filters     map[string]interface{} `mapstructure:"filters" json:"filters"`
	Text        string                 `mapstructure:"text" json:"text"`
	Quote       bool                   `mapstructure:"quote" json:"quote"`
	FileURL     string                 `mapstructure:"file_url" json:"file_url"`
	FileName    string                 `mapstructure:"file_name" json:"file_name"`
	SetState    string                 `mapstructure:"set_state" json:"set_state"`
	DeleteState bool                   `mapstructure:"delete_state" json:"delete_state"`
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".greenbot")

	return &Config{
		Instance: InstanceConfig{
			APIURL:         "https://api.green-api.com",
			MediaURL:       "https://media.green-api.com",
			TimeoutSeconds: 30,
			UpdateSettings: true,
			Settings:       map[string]interface{}{},
		},
		Receiver: ReceiverConfig{
			Mode:                  ModePolling,
			ReceiveTimeoutSeconds: 5,
			RetryDelaySeconds:     5,
		},
		Webhook: WebhookConfig{
			Host: "0.0.0.0",
			Port: 4567,
			Path: "/webhook",
		},
		State: StateConfig{
			Backend:             "memory",
			FilePath:            filepath.Join(base, "state.json"),
			Prefix:              "greenbot:state:",
			AutoSave:            true,
			SaveIntervalSeconds: 5,
		},
		Redis: RedisConfig{
			Addr: "",
			DB:   0,
		},
		Bus: BusConfig{
			Type:       "local",
			Prefix:     "greenbot:bus:",
			BufferSize: 100,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalSeconds: 300,
		},
		Logger: LoggerConfig{
			Level:      "info",
			OutputPath: filepath.Join(base, "logs", "greenbot.log"),
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Replies: []ReplyRule{},
	}
}

// StateFilePath returns the expanded state file path.
func (c *Config) StateFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandPath(c.State.FilePath)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
