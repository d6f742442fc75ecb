package endpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/telemetry"
)

// enterReconnecting transitions out of Connected, tears the current
// generation down, and schedules a reconnect attempt. Mirrors
// mcpservice.Service.enterReconnecting.
func (e *Endpoint) enterReconnecting(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateConnected {
		e.mu.Unlock()
		return
	}
	e.state = StateReconnecting
	conn := e.conn
	cancel := e.cancel
	e.conn = nil
	e.cancel = nil
	e.mu.Unlock()

	telemetry.DefaultMetrics().SetEndpointConnected(context.Background(), -1)

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}

	e.scheduleReconnect(ctx)
}

// scheduleReconnect ensures at most one pending reconnect attempt exists per
// Endpoint.
func (e *Endpoint) scheduleReconnect(ctx context.Context) {
	e.mu.Lock()
	if e.reconnecting || e.closed {
		e.mu.Unlock()
		return
	}
	if !e.cfg.Reconnect.Enabled || e.reconnectAttempts >= e.cfg.Reconnect.MaxAttempts {
		e.mu.Unlock()
		e.fail(nil)
		return
	}
	e.reconnectAttempts++
	attempt := e.reconnectAttempts
	e.reconnecting = true
	rctx, rcancel := context.WithCancel(context.Background())
	e.reconnectCancel = rcancel
	e.mu.Unlock()

	delay := e.cfg.Reconnect.Delay(attempt)
	slog.Info("endpoint.reconnect_scheduled", "url", e.cfg.URL, "attempt", attempt, "delay", delay)
	telemetry.DefaultMetrics().RecordEndpointReconnect(context.Background(), e.cfg.URL)

	e.wg.Add(1)
	go e.runReconnect(rctx, delay)
}

func (e *Endpoint) runReconnect(ctx context.Context, delay time.Duration) {
	defer e.wg.Done()

	clearReconnecting := func() {
		e.mu.Lock()
		e.reconnecting = false
		e.reconnectCancel = nil
		e.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		clearReconnecting()
		return
	case <-time.After(delay):
	}

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		clearReconnecting()
		return
	}

	// Clear the in-flight flag before attempting the connection: a failed
	// attempt calls back into scheduleReconnect (via handleConnectFailure)
	// and must not be blocked by this still-running attempt.
	clearReconnecting()

	if err := e.Connect(context.Background()); err != nil {
		slog.Warn("endpoint.reconnect_failed", "url", e.cfg.URL, "error", err)
	} else {
		slog.Info("endpoint.reconnected", "url", e.cfg.URL)
	}
}
