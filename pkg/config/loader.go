package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPathEnv overrides the config file location when no path is given.
const ConfigPathEnv = "GREENBOT_CONFIG_FILE"

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
	path  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".greenbot"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("GREENBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v}
}

// Load loads the configuration from file and environment variables.
// An empty configPath falls back to GREENBOT_CONFIG_FILE and then to
// ~/.greenbot/config.json. A missing file is created with defaults.
func (l *Loader) Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	explicitPath := configPath != ""
	resolvedPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	if explicitPath {
		l.viper.SetConfigFile(resolvedPath)
		l.setConfigType(resolvedPath)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			if err := SaveToFile(cfg, resolvedPath); err != nil {
				return nil, fmt.Errorf("creating config file: %w", err)
			}
			l.path = resolvedPath
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	l.path = resolvedPath
	if used := strings.TrimSpace(l.viper.ConfigFileUsed()); used != "" {
		l.path = used
	}

	return cfg, nil
}

// Reload re-reads the file the loader last loaded.
func (l *Loader) Reload() (*Config, error) {
	return l.Load(l.path)
}

func (l *Loader) setConfigType(path string) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		l.viper.SetConfigType("yaml")
	case ".toml":
		l.viper.SetConfigType("toml")
	default:
		l.viper.SetConfigType("json")
	}
}

// Save saves the configuration to a file. The format follows the extension.
func (l *Loader) Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	format := "json"
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".toml":
		format = "toml"
	}

	v := viper.New()
	v.SetConfigType(format)

	v.Set("instance", cfg.Instance)
	v.Set("receiver", cfg.Receiver)
	v.Set("webhook", cfg.Webhook)
	v.Set("state", cfg.State)
	v.Set("redis", cfg.Redis)
	v.Set("bus", cfg.Bus)
	v.Set("logger", cfg.Logger)
	v.Set("replies", cfg.Replies)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SaveToFile saves config without creating a Loader first.
func SaveToFile(cfg *Config, path string) error {
	return NewLoader().Save(path, cfg)
}

// GetConfigHome returns the default config directory.
func GetConfigHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".greenbot"), nil
}

// GetConfigPath returns the path of the loaded config file.
func (l *Loader) GetConfigPath() string {
	return l.path
}

func resolveConfigPath(configPath string) (string, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		home, err := GetConfigHome()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, "config.json")
	}
	abs, err := filepath.Abs(expandPath(path))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
