package bus

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"greenbot/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus(newTestLogger(t), 10)
	if err := bus.Start(); err != nil {
		t.Fatalf("Failed to start bus: %v", err)
	}
	defer bus.Stop()

	received := make(chan *Envelope, 1)
	bus.Subscribe(func(ctx context.Context, env *Envelope) error {
		received <- env
		return nil
	})

	env := NewEnvelope(SourceWebhook, []byte(`{"typeWebhook":"incomingMessageReceived"}`))
	if env.ID == "" {
		t.Fatal("Expected envelope id")
	}
	if err := bus.Publish(context.Background(), env); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != env.ID {
			t.Errorf("Expected envelope %s, got %s", env.ID, got.ID)
		}
		if string(got.Body) != string(env.Body) {
			t.Errorf("Unexpected body %s", got.Body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for envelope")
	}

	metrics := bus.GetMetrics()
	if metrics["published"] != 1 {
		t.Errorf("Expected 1 published envelope, got %d", metrics["published"])
	}
}

func TestLocalBusDeliversInOrderOneAtATime(t *testing.T) {
	bus := NewLocalBus(newTestLogger(t), 50)
	bus.Start()
	defer bus.Stop()

	var (
		mu       sync.Mutex
		active   int
		overlaps int
		order    []string
	)
	done := make(chan struct{})
	const total = 20

	bus.Subscribe(func(ctx context.Context, env *Envelope) error {
		mu.Lock()
		active++
		if active > 1 {
			overlaps++
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		active--
		order = append(order, env.ID)
		if len(order) == total {
			close(done)
		}
		mu.Unlock()
		return nil
	})

	var ids []string
	for i := 0; i < total; i++ {
		env := NewEnvelope(SourcePolling, []byte(`{}`))
		ids = append(ids, env.ID)
		if err := bus.Publish(context.Background(), env); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for envelopes")
	}

	mu.Lock()
	defer mu.Unlock()
	if overlaps != 0 {
		t.Errorf("Handlers overlapped %d times", overlaps)
	}
	for i := range ids {
		if order[i] != ids[i] {
			t.Fatalf("Envelope %d out of order", i)
		}
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewLocalBus(newTestLogger(t), 10)
	bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var calls []string
	done := make(chan struct{})

	bus.Subscribe(func(ctx context.Context, env *Envelope) error {
		mu.Lock()
		calls = append(calls, "first")
		mu.Unlock()
		return errors.New("boom")
	})
	bus.Subscribe(func(ctx context.Context, env *Envelope) error {
		mu.Lock()
		calls = append(calls, "second")
		mu.Unlock()
		close(done)
		return nil
	})

	bus.Publish(context.Background(), NewEnvelope(SourceConsole, []byte(`{}`)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for subscribers")
	}

	mu.Lock()
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("Unexpected call order %v", calls)
	}
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for bus.GetMetrics()["delivered"] != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	metrics := bus.GetMetrics()
	if metrics["errors"] != 1 {
		t.Errorf("Expected 1 error, got %d", metrics["errors"])
	}
	if metrics["delivered"] != 1 {
		t.Errorf("Expected 1 delivered envelope, got %d", metrics["delivered"])
	}
}

func TestLocalBusAcksAfterHandlers(t *testing.T) {
	bus := NewLocalBus(newTestLogger(t), 1)

	release := make(chan struct{})
	bus.Subscribe(func(ctx context.Context, env *Envelope) error {
		<-release
		return errors.New("handler failed")
	})
	bus.Start()
	defer bus.Stop()

	env := NewEnvelope(SourcePolling, []byte(`{}`))
	acked := env.Track()
	if err := bus.Publish(context.Background(), env); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case <-acked:
		t.Fatal("Acked before the handler returned")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("Envelope was never acked")
	}
}

func TestLocalBusStopLeavesPendingUnacked(t *testing.T) {
	// Never started, so nothing is consumed.
	bus := NewLocalBus(newTestLogger(t), 3)

	var pending []<-chan struct{}
	for i := 0; i < 3; i++ {
		env := NewEnvelope(SourcePolling, []byte(`{}`))
		pending = append(pending, env.Track())
		if err := bus.Publish(context.Background(), env); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}
	}
	bus.Stop()

	for i, ch := range pending {
		select {
		case <-ch:
			t.Errorf("Discarded envelope %d was acked", i)
		default:
		}
	}
}

func TestLocalBusRejectsAfterStop(t *testing.T) {
	bus := NewLocalBus(newTestLogger(t), 1)
	bus.Start()
	if err := bus.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := bus.Stop(); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}

	err := bus.Publish(context.Background(), NewEnvelope(SourceWebhook, []byte(`{}`)))
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Expected ErrStopped, got %v", err)
	}
}

func TestLocalBusPublishHonorsContext(t *testing.T) {
	// Not started, so the single slot stays full.
	bus := NewLocalBus(newTestLogger(t), 1)
	defer bus.Stop()

	if err := bus.Publish(context.Background(), NewEnvelope(SourceWebhook, []byte(`{}`))); err != nil {
		t.Fatalf("First publish failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Publish(ctx, NewEnvelope(SourceWebhook, []byte(`{}`)))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestNewBus(t *testing.T) {
	log := newTestLogger(t)

	b, err := NewBus(log, &Config{})
	if err != nil {
		t.Fatalf("Default bus: %v", err)
	}
	if _, ok := b.(*LocalBus); !ok {
		t.Errorf("Expected *LocalBus, got %T", b)
	}

	if _, err := NewBus(log, &Config{Type: BusTypeRedis}); err == nil {
		t.Error("Expected error for redis bus without address")
	}
	if _, err := NewBus(log, &Config{Type: "kafka"}); err == nil {
		t.Error("Expected error for unknown bus type")
	}
}

func TestRedisBus(t *testing.T) {
	addr := os.Getenv("GREENBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GREENBOT_TEST_REDIS_ADDR not set")
	}

	bus, err := NewRedisBus(newTestLogger(t), &RedisBusConfig{
		Addr:   addr,
		Prefix: "greenbot:test:" + NewEnvelope("", nil).ID + ":",
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := bus.Start(); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	defer bus.Stop()

	received := make(chan *Envelope, 1)
	bus.Subscribe(func(ctx context.Context, env *Envelope) error {
		received <- env
		return nil
	})

	env := NewEnvelope(SourceWebhook, []byte(`{"typeWebhook":"stateInstanceChanged"}`))
	env.ReceiptID = 42
	if err := bus.Publish(context.Background(), env); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != env.ID || got.ReceiptID != 42 {
			t.Errorf("Unexpected envelope %+v", got)
		}
		if string(got.Body) != string(env.Body) {
			t.Errorf("Unexpected body %s", got.Body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for envelope")
	}
}
