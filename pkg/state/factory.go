package state

import (
	"context"
	"fmt"
	"time"

	"greenbot/pkg/logger"
)

// New creates the Store selected by cfg. Durable stores also implement
// io.Closer; the memory store needs no cleanup.
func New(ctx context.Context, log *logger.Logger, cfg *Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil

	case BackendFile:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path is required for the file state backend")
		}
		fs, err := NewFileStore(log, &FileStoreConfig{
			FilePath:     cfg.FilePath,
			AutoSave:     cfg.AutoSave,
			SaveInterval: time.Duration(cfg.SaveIntervalS) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return NewKVStore(fs, cfg.Prefix), nil

	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required for the redis state backend")
		}
		rs, err := NewRedisStore(ctx, log, &RedisStoreConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return NewKVStore(rs, cfg.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown state backend: %s", cfg.Backend)
	}
}
