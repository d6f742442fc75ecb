package mcpservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/telemetry"
)

// enterReconnecting transitions out of Connected (cancelling the ping loop)
// and schedules a reconnect attempt.
func (s *Service) enterReconnecting(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateReconnecting
	tp := s.transport
	cancel := s.cancel
	s.transport = nil
	s.cancel = nil
	s.tools = make(map[string]ToolDescriptor)
	s.initialized = false
	s.mu.Unlock()

	telemetry.DefaultMetrics().SetServiceConnected(context.Background(), -1)

	if cancel != nil {
		cancel() // stops the ping loop for this generation
	}
	if tp != nil {
		_ = tp.Close()
	}

	s.scheduleReconnect(ctx)
}

// scheduleReconnect ensures at most one pending reconnect timer/loop exists
// per Service. Calling it while one is already pending is a no-op.
func (s *Service) scheduleReconnect(ctx context.Context) {
	s.mu.Lock()
	if s.reconnecting || s.closed {
		s.mu.Unlock()
		return
	}
	if !s.cfg.Reconnect.Enabled || s.reconnectAttempts >= s.cfg.Reconnect.MaxAttempts {
		s.mu.Unlock()
		s.fail(nil)
		return
	}
	s.reconnectAttempts++
	attempt := s.reconnectAttempts
	s.reconnecting = true
	rctx, rcancel := context.WithCancel(context.Background())
	s.reconnectCancel = rcancel
	s.mu.Unlock()

	delay := s.cfg.Reconnect.Delay(attempt)
	slog.Info("mcp.service.reconnect_scheduled", "service", s.cfg.Name, "attempt", attempt, "delay", delay)
	telemetry.DefaultMetrics().RecordServiceReconnect(context.Background(), s.cfg.Name)

	s.wg.Add(1)
	go s.runReconnect(rctx, delay)
}

func (s *Service) runReconnect(ctx context.Context, delay time.Duration) {
	defer s.wg.Done()

	clearReconnecting := func() {
		s.mu.Lock()
		s.reconnecting = false
		s.reconnectCancel = nil
		s.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		clearReconnecting()
		return
	case <-time.After(delay):
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		clearReconnecting()
		return
	}

	// Clear the in-flight flag before attempting the connection so that a
	// failed attempt's own call into scheduleReconnect (via
	// handleConnectFailure) is not blocked by this still-running attempt.
	clearReconnecting()

	if err := s.Connect(context.Background()); err != nil {
		slog.Warn("mcp.service.reconnect_failed", "service", s.cfg.Name, "error", err)
	} else {
		slog.Info("mcp.service.reconnected", "service", s.cfg.Name)
	}
}
