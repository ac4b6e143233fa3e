// Package receiver implements the long-poll transport: it pulls
// notifications from the instance queue onto the bus.
package receiver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenbot/pkg/api"
	"greenbot/pkg/bus"
	"greenbot/pkg/logger"
)

// Config configures the poller.
type Config struct {
	ReceiveTimeout  time.Duration
	RetryDelay      time.Duration
	DeleteAtStartup bool
}

// Poller loops receiveNotification, publishes each body to the bus, waits
// for the dispatcher to handle it and only then deletes the receipt. A
// receipt whose envelope is still pending at shutdown stays queued.
type Poller struct {
	log   *logger.Logger
	queue api.Queue
	bus   bus.Bus
	cfg   Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	received uint64
	failures uint64
}

// New creates a poller. Zero durations fall back to 5 seconds.
func New(log *logger.Logger, queue api.Queue, b bus.Bus, cfg Config) *Poller {
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	return &Poller{
		log:   log.Named("receiver"),
		queue: queue,
		bus:   b,
		cfg:   cfg,
	}
}

// Start launches the polling goroutine. With DeleteAtStartup the queue is
// drained first, discarding whatever accumulated while the bot was down.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	p.log.Info("Starting notification poller",
		zap.Duration("receive_timeout", p.cfg.ReceiveTimeout),
		zap.Bool("delete_at_startup", p.cfg.DeleteAtStartup))

	if p.cfg.DeleteAtStartup {
		n, err := p.Drain(ctx)
		if err != nil {
			p.cancel()
			return err
		}
		p.log.Info("Drained notification queue", zap.Int("deleted", n))
	}

	p.wg.Add(1)
	go p.run()
	return nil
}

// Stop cancels the pending receive and waits for the loop to exit.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel == nil {
		return nil
	}
	p.log.Info("Stopping notification poller")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain deletes queued notifications without publishing them until the
// queue reports empty.
func (p *Poller) Drain(ctx context.Context) (int, error) {
	deleted := 0
	for {
		receipt, err := p.queue.ReceiveNotification(ctx, 0)
		if err != nil {
			return deleted, err
		}
		if receipt == nil {
			return deleted, nil
		}
		if err := p.queue.DeleteNotification(ctx, receipt.ReceiptID); err != nil {
			return deleted, err
		}
		deleted++
	}
}

// Stats returns the number of notifications received and the number of
// failed cycles.
func (p *Poller) Stats() (received, failures uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received, p.failures
}

func (p *Poller) run() {
	defer p.wg.Done()

	timeout := int(p.cfg.ReceiveTimeout / time.Second)
	for {
		if p.ctx.Err() != nil {
			return
		}

		if err := p.poll(p.ctx, timeout); err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.mu.Lock()
			p.failures++
			p.mu.Unlock()

			p.log.Error("Polling failed, retrying",
				zap.Duration("retry_delay", p.cfg.RetryDelay),
				zap.Error(err))

			select {
			case <-time.After(p.cfg.RetryDelay):
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// poll runs one receive, publish, wait, delete cycle.
func (p *Poller) poll(ctx context.Context, timeout int) error {
	receipt, err := p.queue.ReceiveNotification(ctx, timeout)
	if err != nil {
		return err
	}
	if receipt == nil {
		return nil
	}

	p.mu.Lock()
	p.received++
	p.mu.Unlock()

	p.log.Debug("Received notification", zap.Int64("receipt_id", receipt.ReceiptID))

	if len(receipt.Body) == 0 || string(receipt.Body) == "null" {
		p.log.Warn("Dropping notification without body", zap.Int64("receipt_id", receipt.ReceiptID))
	} else {
		env := bus.NewEnvelope(bus.SourcePolling, receipt.Body)
		env.ReceiptID = receipt.ReceiptID
		handled := env.Track()
		// On failure the receipt stays queued and is received again.
		if err := p.bus.Publish(ctx, env); err != nil {
			return fmt.Errorf("publishing receipt %d: %w", receipt.ReceiptID, err)
		}
		select {
		case <-handled:
		case <-ctx.Done():
			p.log.Info("Leaving unhandled receipt queued", zap.Int64("receipt_id", receipt.ReceiptID))
			return ctx.Err()
		}
	}

	return p.queue.DeleteNotification(ctx, receipt.ReceiptID)
}
