package bus

import (
	"fmt"

	"greenbot/pkg/logger"
)

// BusType represents the bus backend type.
type BusType string

const (
	BusTypeLocal BusType = "local"
	BusTypeRedis BusType = "redis"
)

// Config configures the bus.
type Config struct {
	Type       BusType
	BufferSize int // local bus only

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// NewBus creates the bus selected by cfg.
func NewBus(log *logger.Logger, cfg *Config) (Bus, error) {
	switch cfg.Type {
	case BusTypeLocal, "":
		return NewLocalBus(log, cfg.BufferSize), nil

	case BusTypeRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required for redis bus")
		}
		return NewRedisBus(log, &RedisBusConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})

	default:
		return nil, fmt.Errorf("unknown bus type: %s", cfg.Type)
	}
}
