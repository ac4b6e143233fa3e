package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"greenbot/pkg/api"
	"greenbot/pkg/logger"
)

type fakeAccount struct {
	mu     sync.Mutex
	states []string
	err    error
	calls  int
}

func (a *fakeAccount) GetSettings(ctx context.Context) (api.Settings, error) { return api.Settings{}, nil }
func (a *fakeAccount) SetSettings(ctx context.Context, s api.Settings) error { return nil }

func (a *fakeAccount) GetStateInstance(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	st := a.states[0]
	if len(a.states) > 1 {
		a.states = a.states[1:]
	}
	return st, nil
}

func (a *fakeAccount) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestHeartbeat(t *testing.T, account api.Account, cfg *Config) *Heartbeat {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return New(log, account, cfg)
}

func TestCheckReportsChanges(t *testing.T) {
	account := &fakeAccount{states: []string{api.StateAuthorized, api.StateAuthorized, api.StateNotAuthorized}}
	h := newTestHeartbeat(t, account, &Config{Enabled: true})

	var changes [][2]string
	h.OnChange(func(previous, current string) {
		changes = append(changes, [2]string{previous, current})
	})

	for i := 0; i < 3; i++ {
		if _, err := h.Check(context.Background()); err != nil {
			t.Fatalf("Check %d failed: %v", i, err)
		}
	}

	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %v", changes)
	}
	if changes[0] != [2]string{"", api.StateAuthorized} {
		t.Errorf("First change = %v", changes[0])
	}
	if changes[1] != [2]string{api.StateAuthorized, api.StateNotAuthorized} {
		t.Errorf("Second change = %v", changes[1])
	}

	state, ok := h.State()
	if !ok || state != api.StateNotAuthorized {
		t.Errorf("State = %q, %v", state, ok)
	}

	stats := h.GetStats()
	if stats["checks"] != uint64(3) || stats["failures"] != uint64(0) {
		t.Errorf("Unexpected stats %v", stats)
	}
}

func TestCheckFailureKeepsLastState(t *testing.T) {
	account := &fakeAccount{states: []string{api.StateAuthorized}}
	h := newTestHeartbeat(t, account, &Config{Enabled: true})

	h.Check(context.Background())
	account.err = errors.New("timeout")
	if _, err := h.Check(context.Background()); err == nil {
		t.Fatal("Expected error")
	}

	if state, _ := h.State(); state != api.StateAuthorized {
		t.Errorf("State = %q", state)
	}
	stats := h.GetStats()
	if stats["failures"] != uint64(1) || stats["last_error"] != "timeout" {
		t.Errorf("Unexpected stats %v", stats)
	}
}

func TestStartChecksImmediately(t *testing.T) {
	account := &fakeAccount{states: []string{api.StateAuthorized}}
	h := newTestHeartbeat(t, account, &Config{Enabled: true, Interval: time.Hour})

	if err := h.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for account.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Heartbeat never checked")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDisabledHeartbeatDoesNotRun(t *testing.T) {
	account := &fakeAccount{states: []string{api.StateAuthorized}}
	h := newTestHeartbeat(t, account, &Config{Enabled: false, Interval: time.Millisecond})

	h.Start()
	time.Sleep(20 * time.Millisecond)
	h.Stop()

	if account.callCount() != 0 {
		t.Fatalf("Disabled heartbeat made %d calls", account.callCount())
	}
	if h.IsEnabled() {
		t.Fatal("Expected disabled")
	}
}
