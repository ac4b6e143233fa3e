package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"greenbot/pkg/logger"
)

// maxTxRetries bounds optimistic-lock retries in UpdateFunc.
const maxTxRetries = 5

// RedisStore is a KV backed by Redis string keys holding JSON.
type RedisStore struct {
	log    *logger.Logger
	client *redis.Client
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, log *logger.Logger, cfg *RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	log.Info("Connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))

	return &RedisStore{log: log, client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(log *logger.Logger, client *redis.Client) *RedisStore {
	return &RedisStore{log: log, client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (any, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result any
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return result, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// UpdateFunc runs fn inside a WATCH transaction, retrying when another
// client changes the key concurrently.
func (s *RedisStore) UpdateFunc(ctx context.Context, key string, fn UpdateFn) error {
	txf := func(tx *redis.Tx) error {
		var current any
		exists := true

		val, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(val), &current); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
		}

		next, write := fn(current, exists)
		if !write {
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshaling value: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("redis transaction: %w", err)
		}
		s.log.Debug("Retrying contended state update", zap.String("key", key), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("redis transaction: %w", redis.TxFailedErr)
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
