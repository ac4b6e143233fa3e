// Package heartbeat periodically checks that the instance is still
// authorized and reports state changes.
package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenbot/pkg/api"
	"greenbot/pkg/logger"
)

// Config configures the heartbeat.
type Config struct {
	Enabled  bool
	Interval time.Duration // default: 5 minutes
}

// ChangeFunc is called when the reported instance state changes.
type ChangeFunc func(previous, current string)

// Heartbeat polls getStateInstance on a ticker.
type Heartbeat struct {
	log      *logger.Logger
	account  api.Account
	interval time.Duration
	enabled  bool

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	ticker *time.Ticker
	wg     sync.WaitGroup

	mu        sync.RWMutex
	state     string
	checkedAt time.Time
	checks    uint64
	failures  uint64
	lastError string
	onChange  []ChangeFunc
}

// New creates a heartbeat.
func New(log *logger.Logger, account api.Account, cfg *Config) *Heartbeat {
	interval := cfg.Interval
	if interval == 0 {
		interval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Heartbeat{
		log:      log.Named("heartbeat"),
		account:  account,
		interval: interval,
		enabled:  cfg.Enabled,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnChange registers fn for state transitions, including the first check.
func (h *Heartbeat) OnChange(fn ChangeFunc) {
	h.mu.Lock()
	h.onChange = append(h.onChange, fn)
	h.mu.Unlock()
}

// Start runs a first check and then checks on every tick.
func (h *Heartbeat) Start() error {
	if !h.enabled {
		h.log.Info("Heartbeat is disabled, not starting")
		return nil
	}

	h.log.Info("Starting heartbeat", zap.Duration("interval", h.interval))

	h.ticker = time.NewTicker(h.interval)

	h.wg.Add(1)
	go h.run()

	return nil
}

// Stop stops the heartbeat.
func (h *Heartbeat) Stop() error {
	if h.ticker != nil {
		h.ticker.Stop()
	}

	h.cancel()
	h.wg.Wait()
	return nil
}

// IsEnabled returns whether the heartbeat runs.
func (h *Heartbeat) IsEnabled() bool {
	return h.enabled
}

// State returns the last state reported and whether any check succeeded.
func (h *Heartbeat) State() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state, h.state != ""
}

// GetStats returns heartbeat statistics.
func (h *Heartbeat) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var checkedAt string
	if !h.checkedAt.IsZero() {
		checkedAt = h.checkedAt.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"enabled":    h.enabled,
		"interval":   h.interval.String(),
		"state":      h.state,
		"checked_at": checkedAt,
		"checks":     h.checks,
		"failures":   h.failures,
		"last_error": h.lastError,
	}
}

// Check queries the instance state once.
func (h *Heartbeat) Check(ctx context.Context) (string, error) {
	current, err := h.account.GetStateInstance(ctx)

	h.mu.Lock()
	h.checks++
	h.checkedAt = time.Now()
	if err != nil {
		h.failures++
		h.lastError = err.Error()
		h.mu.Unlock()
		return "", fmt.Errorf("checking instance state: %w", err)
	}
	h.lastError = ""
	previous := h.state
	h.state = current
	callbacks := h.onChange
	h.mu.Unlock()

	if previous != current {
		fields := []zap.Field{zap.String("previous", previous), zap.String("state", current)}
		if current == api.StateAuthorized {
			h.log.Info("Instance state changed", fields...)
		} else {
			h.log.Warn("Instance is not authorized", fields...)
		}
		for _, fn := range callbacks {
			fn(previous, current)
		}
	}

	return current, nil
}

// run is the main heartbeat loop.
func (h *Heartbeat) run() {
	defer h.wg.Done()

	h.tick()
	for {
		select {
		case <-h.ticker.C:
			h.tick()
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Heartbeat) tick() {
	ctx, cancel := context.WithTimeout(h.ctx, 30*time.Second)
	defer cancel()

	if _, err := h.Check(ctx); err != nil && h.ctx.Err() == nil {
		h.log.Error("Heartbeat check failed", zap.Error(err))
	}
}
