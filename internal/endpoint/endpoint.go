// Package endpoint implements the outbound WebSocket connection to an
// upstream MCP peer. The bridge dials out, but once connected it behaves
// as the MCP *server*: the peer sends initialize/tools/list/tools/call/
// ping requests, and the Endpoint answers them by delegating to a
// ToolCatalog (the Service Manager in production).
//
// The dial/run/reconnect/ping shape generalizes a binary chat-frame
// listener pattern to JSON-RPC 2.0 text frames and from a single
// hardcoded peer to configured upstream URLs.
package endpoint

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
	"github.com/nextlevelbuilder/mcpbridge/internal/telemetry"
)

// State is the Endpoint's connection lifecycle state (shares its shape
// with mcpservice.ConnectionState but is kept as its own type: the two
// layers evolve independently).
type State string

const (
	StateDisconnected State = "Disconnected"
	StateConnecting   State = "Connecting"
	StateConnected    State = "Connected"
	StateReconnecting State = "Reconnecting"
	StateFailed       State = "Failed"
)

// Endpoint is one upstream MCP peer connection.
type Endpoint struct {
	cfg     config.EndpointConfig
	catalog ToolCatalog
	limiter *rate.Limiter // nil when cfg.RateLimit is disabled

	mu                sync.RWMutex
	state             State
	conn              *wsConn
	lastErr           string
	reconnectAttempts int
	missedPongs       int
	lastHeartbeatAt   time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCancel context.CancelFunc
	reconnecting    bool

	closed bool
}

// New creates an unconnected Endpoint for cfg, dispatching tool operations
// against catalog.
func New(cfg config.EndpointConfig, catalog ToolCatalog) *Endpoint {
	e := &Endpoint{cfg: cfg, catalog: catalog, state: StateDisconnected}
	if cfg.RateLimit.Enabled() {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}
	return e
}

// URL returns the endpoint's configured URL; it doubles as the registry
// key in endpointmgr.
func (e *Endpoint) URL() string { return e.cfg.URL }

func (e *Endpoint) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status is the admin-surface snapshot for one endpoint.
type Status struct {
	URL               string    `json:"url"`
	State             State     `json:"state"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	MissedPongs       int       `json:"missedPongs"`
	LastHeartbeatAt   time.Time `json:"lastHeartbeatAt,omitempty"`
	LastError         string    `json:"lastError,omitempty"`
}

func (e *Endpoint) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		URL:               e.cfg.URL,
		State:             e.state,
		ReconnectAttempts: e.reconnectAttempts,
		MissedPongs:       e.missedPongs,
		LastHeartbeatAt:   e.lastHeartbeatAt,
		LastError:         e.lastErr,
	}
}

// Connect dials the upstream peer and starts the read and heartbeat loops.
// On failure it schedules a reconnect (if configured) or transitions to
// Failed, mirroring mcpservice.Service.Connect's failure handling.
func (e *Endpoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return mcperr.New(mcperr.CodeConfigError, "endpoint: connect called after stop")
	}
	e.state = StateConnecting
	e.mu.Unlock()

	if err := e.cfg.Validate(); err != nil {
		e.fail(err)
		return mcperr.Wrap(mcperr.CodeConfigError, "endpoint: invalid config", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	conn, err := dialWS(dialCtx, e.cfg.URL, e.cfg.Headers)
	cancel()
	if err != nil {
		return e.handleConnectFailure(ctx, mcperr.Wrap(mcperr.CodeTransportError, "endpoint: dial", err))
	}

	genCtx, genCancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.conn = conn
	e.state = StateConnected
	e.reconnectAttempts = 0
	e.missedPongs = 0
	e.lastErr = ""
	e.cancel = genCancel
	e.mu.Unlock()

	slog.Info("endpoint.connected", "url", e.cfg.URL)
	telemetry.DefaultMetrics().SetEndpointConnected(ctx, 1)

	e.wg.Add(2)
	go e.readLoop(genCtx, conn)
	go e.heartbeatLoop(genCtx, conn)
	return nil
}

func (e *Endpoint) fail(err error) {
	e.mu.Lock()
	wasConnected := e.state == StateConnected
	e.state = StateFailed
	if err != nil {
		e.lastErr = err.Error()
	}
	e.mu.Unlock()
	slog.Error("endpoint.failed", "url", e.cfg.URL, "error", err)
	if wasConnected {
		telemetry.DefaultMetrics().SetEndpointConnected(context.Background(), -1)
	}
}

func (e *Endpoint) handleConnectFailure(ctx context.Context, cause error) error {
	e.mu.Lock()
	if cause != nil {
		e.lastErr = cause.Error()
	}
	reconnectEnabled := e.cfg.Reconnect.Enabled
	attempts := e.reconnectAttempts
	maxAttempts := e.cfg.Reconnect.MaxAttempts
	e.mu.Unlock()

	if reconnectEnabled && attempts < maxAttempts {
		e.scheduleReconnect(ctx)
		return cause
	}
	e.fail(cause)
	return cause
}

// readLoop consumes frames from the peer until the connection fails, which
// triggers a reconnect, or the generation context is cancelled, which just
// returns.
func (e *Endpoint) readLoop(ctx context.Context, conn *wsConn) {
	defer e.wg.Done()

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // generation superseded (Disconnect/Stop or reconnect already in flight)
			}
			slog.Warn("endpoint.read_error", "url", e.cfg.URL, "close_code", closeCode(err), "error", err)
			e.enterReconnecting(ctx)
			return
		}
		e.dispatch(ctx, conn, data)
	}
}

// Disconnect tears the connection down without scheduling a reconnect.
// Idempotent.
func (e *Endpoint) Disconnect() {
	e.mu.Lock()
	wasConnected := e.state == StateConnected
	conn := e.conn
	cancel := e.cancel
	reconnectCancel := e.reconnectCancel
	e.conn = nil
	e.cancel = nil
	e.reconnectCancel = nil
	e.state = StateDisconnected
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if reconnectCancel != nil {
		// Wake a sleeping runReconnect immediately instead of letting
		// wg.Wait() block for the rest of the backoff delay.
		reconnectCancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	e.wg.Wait()
	if wasConnected {
		telemetry.DefaultMetrics().SetEndpointConnected(context.Background(), -1)
	}
}

// Stop permanently shuts the endpoint down; subsequent Connect calls fail.
// closed is set before Disconnect runs so a runReconnect goroutine already
// past its select (backoff elapsed, about to check e.closed) never reopens
// the connection after shutdown. Bounded by the caller's context so
// shutdown cannot hang on a stuck peer.
func (e *Endpoint) Stop(ctx context.Context) {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("endpoint.stop_timeout", "url", e.cfg.URL)
	}
}
