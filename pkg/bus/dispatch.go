package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"greenbot/pkg/logger"
)

// consumer holds the subscriber list and counters shared by both buses.
type consumer struct {
	log *logger.Logger

	mu       sync.RWMutex
	handlers []Handler

	metricsLock sync.RWMutex
	published   uint64
	delivered   uint64
	errors      uint64
}

func (c *consumer) Subscribe(handler Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
}

func (c *consumer) deliver(ctx context.Context, env *Envelope) {
	defer env.Ack()

	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.log.Warn("No subscribers for envelope",
			zap.String("envelope_id", env.ID),
			zap.String("source", env.Source))
		return
	}

	c.log.Debug("Delivering envelope",
		zap.String("envelope_id", env.ID),
		zap.String("source", env.Source))

	for _, handler := range handlers {
		if err := handler(ctx, env); err != nil {
			c.incr(&c.errors)
			c.log.Error("Subscriber error",
				zap.String("envelope_id", env.ID),
				zap.Error(err))
		}
	}
	c.incr(&c.delivered)
}

func (c *consumer) GetMetrics() map[string]uint64 {
	c.metricsLock.RLock()
	defer c.metricsLock.RUnlock()

	return map[string]uint64{
		"published": c.published,
		"delivered": c.delivered,
		"errors":    c.errors,
	}
}

func (c *consumer) incr(counter *uint64) {
	c.metricsLock.Lock()
	*counter++
	c.metricsLock.Unlock()
}
