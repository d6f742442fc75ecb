package endpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/telemetry"
)

// heartbeatLoop pings the peer at cfg.Heartbeat.Interval() and escalates to
// a reconnect once MissedPongLimit consecutive pings fail to get a pong.
// It uses a real WS ping/pong rather than a derived read-deadline, since
// the Endpoint protocol has no per-message cadence to key a deadline off
// of.
func (e *Endpoint) heartbeatLoop(ctx context.Context, conn *wsConn) {
	defer e.wg.Done()

	interval := e.cfg.Heartbeat.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pingOnceAndRecord(ctx, conn)
		}
	}
}

func (e *Endpoint) pingOnceAndRecord(ctx context.Context, conn *wsConn) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout(e.cfg.Heartbeat))
	err := conn.Ping(pctx)
	cancel()

	if err == nil {
		e.mu.Lock()
		e.missedPongs = 0
		e.lastHeartbeatAt = time.Now()
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.missedPongs++
	missed := e.missedPongs
	limit := e.cfg.Heartbeat.MissedPongLimit
	e.mu.Unlock()

	slog.Warn("endpoint.heartbeat_missed", "url", e.cfg.URL, "missed", missed, "error", err)
	telemetry.DefaultMetrics().RecordEndpointHeartbeatMiss(ctx, e.cfg.URL)

	if missed >= limit {
		slog.Warn("endpoint.heartbeat_limit_exceeded", "url", e.cfg.URL)
		e.enterReconnecting(ctx)
	}
}

// pingTimeout caps an individual ping well under the heartbeat interval so a
// slow pong doesn't starve the next tick.
func pingTimeout(cfg interface{ Interval() time.Duration }) time.Duration {
	d := cfg.Interval() / 2
	if d <= 0 {
		d = 5 * time.Second
	}
	return d
}
