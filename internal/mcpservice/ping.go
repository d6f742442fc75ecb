package mcpservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/telemetry"
)

// pingLoop runs while the service is Connected. It is cancelled
// by the generation context whenever the service leaves Connected, so at
// most one ping loop is ever active per connection generation.
func (s *Service) pingLoop(ctx context.Context) {
	defer s.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.Ping.StartDelay()):
	}

	ticker := time.NewTicker(s.cfg.Ping.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pingOnceAndRecord(ctx)
		}
	}
}

func (s *Service) pingOnceAndRecord(ctx context.Context) {
	s.mu.RLock()
	tp := s.transport
	s.mu.RUnlock()
	if tp == nil {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.Ping.Timeout())
	err := pingOnce(pctx, tp.Client)
	cancel()

	if err == nil {
		s.mu.Lock()
		s.pingFailures = 0
		s.lastPingAt = time.Now()
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.pingFailures++
	failures := s.pingFailures
	threshold := s.cfg.Ping.MaxFailures
	s.mu.Unlock()

	slog.Warn("mcp.service.ping_failed", "service", s.cfg.Name, "failures", failures, "error", err)
	telemetry.DefaultMetrics().RecordServicePingFailure(ctx, s.cfg.Name)

	if failures >= threshold {
		slog.Warn("mcp.service.ping_threshold_exceeded", "service", s.cfg.Name)
		s.enterReconnecting(ctx)
	}
}
