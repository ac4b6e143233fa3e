package state

import (
	"context"
)

// KV is a durable key-value backend for KVStore. Values must survive a JSON
// round trip.
type KV interface {
	// Get retrieves a value.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores a value.
	Set(ctx context.Context, key string, value any) error

	// Delete removes a value. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// UpdateFunc atomically reads the current value and, when fn reports
	// write, stores the value fn returns.
	UpdateFunc(ctx context.Context, key string, fn UpdateFn) error

	// Close releases the backend.
	Close() error
}

// UpdateFn computes the next value from the current one.
type UpdateFn func(current any, exists bool) (next any, write bool)

// BackendType selects the Store implementation.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
)

// Config configures the state store.
type Config struct {
	Backend BackendType

	// Key prefix for durable backends.
	Prefix string

	// File backend
	FilePath      string
	AutoSave      bool
	SaveIntervalS int

	// Redis backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
