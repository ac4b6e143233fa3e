package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"greenbot/pkg/logger"
)

// DefaultRedisPrefix namespaces the bus channel.
const DefaultRedisPrefix = "greenbot:bus:"

// RedisBus fans envelopes from any number of publishers, such as webhook
// replicas, into the consumer of this process over Redis pub/sub.
type RedisBus struct {
	consumer

	client  *redis.Client
	channel string
	pubsub  *redis.PubSub

	// tracked envelopes published here, acked when they come back
	trackMu sync.Mutex
	tracked map[string]*Envelope

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once
}

// RedisBusConfig configures the Redis bus.
type RedisBusConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBus connects to Redis and checks the connection.
func NewRedisBus(log *logger.Logger, cfg *RedisBusConfig) (*RedisBus, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &RedisBus{
		consumer: consumer{log: log.Named("bus")},
		client:   client,
		channel:  prefix + "events",
		tracked:  make(map[string]*Envelope),
		ctx:      ctx,
		cancel:   cancel,
	}

	b.log.Info("Redis event bus initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("channel", b.channel))

	return b, nil
}

// Start subscribes and launches the consumer goroutine.
func (b *RedisBus) Start() error {
	b.log.Info("Starting Redis event bus")

	b.pubsub = b.client.Subscribe(b.ctx, b.channel)
	if _, err := b.pubsub.Receive(b.ctx); err != nil {
		b.pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}

	b.wg.Add(1)
	go b.process()
	return nil
}

// Stop unsubscribes and closes the client.
func (b *RedisBus) Stop() error {
	b.stop.Do(func() {
		b.log.Info("Stopping Redis event bus")
		b.cancel()
		if b.pubsub != nil {
			b.pubsub.Close()
		}
		b.wg.Wait()
		b.client.Close()
	})
	return nil
}

// Publish sends env to every subscribed process.
func (b *RedisBus) Publish(ctx context.Context, env *Envelope) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	if env.done != nil {
		b.trackMu.Lock()
		b.tracked[env.ID] = env
		b.trackMu.Unlock()
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.untrack(env.ID)
		return fmt.Errorf("publishing to Redis: %w", err)
	}

	b.incr(&b.published)
	return nil
}

func (b *RedisBus) process() {
	defer b.wg.Done()

	ch := b.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.incr(&b.errors)
				b.log.Error("Failed to unmarshal envelope", zap.Error(err))
				continue
			}
			b.deliver(b.ctx, &env)
			if origin := b.untrack(env.ID); origin != nil {
				origin.Ack()
			}

		case <-b.ctx.Done():
			return
		}
	}
}

func (b *RedisBus) untrack(id string) *Envelope {
	b.trackMu.Lock()
	defer b.trackMu.Unlock()
	env := b.tracked[id]
	delete(b.tracked, id)
	return env
}
