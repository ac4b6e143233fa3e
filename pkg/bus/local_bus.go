package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"greenbot/pkg/logger"
)

const publishTimeout = 5 * time.Second

// LocalBus is an in-process bus over a buffered channel with one consumer.
type LocalBus struct {
	consumer

	queue chan *Envelope

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
	stop   sync.Once
}

// NewLocalBus creates a local bus holding up to bufferSize pending envelopes.
func NewLocalBus(log *logger.Logger, bufferSize int) *LocalBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &LocalBus{
		consumer: consumer{log: log.Named("bus")},
		queue:    make(chan *Envelope, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the consumer goroutine.
func (b *LocalBus) Start() error {
	b.start.Do(func() {
		b.log.Info("Starting local event bus")
		b.wg.Add(1)
		go b.process()
	})
	return nil
}

// Stop stops the consumer after the envelope in progress. Pending
// envelopes are discarded without an ack.
func (b *LocalBus) Stop() error {
	b.stop.Do(func() {
		b.log.Info("Stopping local event bus")
		b.cancel()
		b.wg.Wait()
	})
	return nil
}

// Publish queues env, waiting while the buffer is full.
func (b *LocalBus) Publish(ctx context.Context, env *Envelope) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case b.queue <- env:
		b.incr(&b.published)
		return nil
	case <-b.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout publishing envelope %s", env.ID)
	}
}

func (b *LocalBus) process() {
	defer b.wg.Done()

	for {
		select {
		case env := <-b.queue:
			b.deliver(b.ctx, env)
		case <-b.ctx.Done():
			return
		}
	}
}
