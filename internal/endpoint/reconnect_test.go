package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
)

// TestScheduleReconnectAtMostOneInFlight mirrors the same invariant enforced
// on the downstream Service side: a second scheduleReconnect call while one
// is already pending must not start a second reconnect goroutine or bump the
// attempt counter again.
func TestScheduleReconnectAtMostOneInFlight(t *testing.T) {
	e := New(config.EndpointConfig{
		// No ws:// prefix: cfg.Validate() always fails, so Connect cannot
		// ever succeed and the reconnect loop exhausts deterministically.
		URL: "not-a-ws-url",
		Reconnect: config.ReconnectConfig{
			Enabled:           true,
			MaxAttempts:       1,
			InitialIntervalMs: 10,
			MaxIntervalMs:     10,
			BackoffMultiplier: 1,
		},
	}, &fakeCatalog{})

	ctx := context.Background()
	e.scheduleReconnect(ctx)
	e.scheduleReconnect(ctx) // must no-op

	e.mu.RLock()
	attempts := e.reconnectAttempts
	reconnecting := e.reconnecting
	e.mu.RUnlock()
	if attempts != 1 {
		t.Fatalf("reconnectAttempts = %d, want 1", attempts)
	}
	if !reconnecting {
		t.Fatalf("expected reconnecting=true immediately after scheduling")
	}

	e.wg.Wait()

	if got := e.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q once MaxAttempts is exhausted", got, StateFailed)
	}
}

func TestEnterReconnectingNoopWhenNotConnected(t *testing.T) {
	e := New(config.EndpointConfig{URL: "wss://example.com/ep"}, &fakeCatalog{})
	e.enterReconnecting(context.Background())

	e.mu.RLock()
	reconnecting := e.reconnecting
	e.mu.RUnlock()
	if reconnecting {
		t.Errorf("enterReconnecting should be a no-op when state != Connected")
	}
}

// TestStopDuringReconnectBackoffReturnsPromptly guards against a stuck
// runReconnect holding Stop() hostage for the rest of the backoff delay,
// and against that goroutine reopening the connection after Stop() returns.
func TestStopDuringReconnectBackoffReturnsPromptly(t *testing.T) {
	e := New(config.EndpointConfig{
		URL: "not-a-ws-url", // cfg.Validate() always fails
		Reconnect: config.ReconnectConfig{
			Enabled:           true,
			MaxAttempts:       5,
			InitialIntervalMs: 5000,
			MaxIntervalMs:     5000,
			BackoffMultiplier: 1,
		},
	}, &fakeCatalog{})

	e.scheduleReconnect(context.Background())
	e.mu.RLock()
	reconnecting := e.reconnecting
	e.mu.RUnlock()
	if !reconnecting {
		t.Fatalf("expected a reconnect to be pending before Stop")
	}

	done := make(chan struct{})
	go func() {
		e.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Stop() blocked for the backoff delay instead of cancelling the pending reconnect")
	}

	time.Sleep(20 * time.Millisecond)
	if got := e.State(); got != StateDisconnected {
		t.Errorf("State() = %q, want %q after Stop during backoff", got, StateDisconnected)
	}
	if err := e.Connect(context.Background()); err == nil || mcperr.CodeOf(err) != mcperr.CodeConfigError {
		t.Errorf("Connect after Stop should be rejected with ConfigError, got %v", err)
	}
}
