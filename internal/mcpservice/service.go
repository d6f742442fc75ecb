// Package mcpservice implements the per-downstream-service connection:
// transport selection, MCP handshake, tool discovery, JSON-RPC tool calls
// with deadlines, a liveness ping loop, and backoff reconnect.
package mcpservice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcptransport"
	"github.com/nextlevelbuilder/mcpbridge/internal/telemetry"
)

// Service is one downstream MCP server connection.
type Service struct {
	cfg config.ServiceConfig

	mu        sync.RWMutex
	state     ConnectionState
	transport *mcptransport.Transport
	tools     map[string]ToolDescriptor // local name -> descriptor
	lastErr   string

	initialized       bool
	reconnectAttempts int
	pingFailures      int
	lastPingAt        time.Time

	// cancel stops the ping loop owned by this connection generation.
	// Replaced on every (re)connect so that at most one is ever running.
	// A pending reconnect timer is cancelled through reconnectCancel.
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCancel context.CancelFunc
	reconnecting    bool

	closed bool
}

// New creates an unconnected Service for cfg.
func New(cfg config.ServiceConfig) *Service {
	return &Service{
		cfg:   cfg,
		state: StateDisconnected,
		tools: make(map[string]ToolDescriptor),
	}
}

// Name returns the service's configured name.
func (s *Service) Name() string { return s.cfg.Name }

// Config returns the service's configuration.
func (s *Service) Config() config.ServiceConfig { return s.cfg }

// State returns the current connection state.
func (s *Service) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(st ConnectionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Tools returns a snapshot of the current tool table. Readers always see a
// consistent copy: the table is
// replaced wholesale on every successful connect, never mutated in place.
func (s *Service) Tools() []ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	return out
}

// Status is the admin-surface snapshot for one service.
type Status struct {
	Name              string          `json:"name"`
	State             ConnectionState `json:"state"`
	ToolCount         int             `json:"toolCount"`
	Initialized       bool            `json:"initialized"`
	LastPingAt        time.Time       `json:"lastPingAt,omitempty"`
	PingFailureCount  int             `json:"pingFailureCount"`
	ReconnectAttempts int             `json:"reconnectAttempts"`
	LastError         string          `json:"lastError,omitempty"`
}

// Status returns the snapshot for this service.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Name:              s.cfg.Name,
		State:             s.state,
		ToolCount:         len(s.tools),
		Initialized:       s.initialized,
		LastPingAt:        s.lastPingAt,
		PingFailureCount:  s.pingFailures,
		ReconnectAttempts: s.reconnectAttempts,
		LastError:         s.lastErr,
	}
}

// Connect performs the full connect protocol: open transport,
// handshake, fetch tools, transition to Connected, start the ping loop.
// On failure it either schedules a reconnect (if enabled and attempts
// remain) or transitions to Failed.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return mcperr.New(mcperr.CodeConfigError, "service: connect called after stop")
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.cfg.Validate(); err != nil {
		s.fail(err)
		return mcperr.Wrap(mcperr.CodeConfigError, "service: invalid config", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	tp, err := mcptransport.Open(openCtx, s.cfg)
	if err != nil {
		return s.handleConnectFailure(ctx, mcperr.Wrap(mcperr.CodeTransportError, "service: open transport", err))
	}

	if err := s.handshake(openCtx, tp); err != nil {
		_ = tp.Close()
		return s.handleConnectFailure(ctx, err)
	}

	tools, err := s.fetchTools(openCtx, tp)
	if err != nil {
		_ = tp.Close()
		return s.handleConnectFailure(ctx, err)
	}

	genCtx, genCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.transport = tp
	s.tools = tools
	s.initialized = true
	s.state = StateConnected
	s.reconnectAttempts = 0
	s.pingFailures = 0
	s.lastErr = ""
	s.cancel = genCancel
	s.mu.Unlock()

	slog.Info("mcp.service.connected", "service", s.cfg.Name, "transport", tp.Kind, "tools", len(tools))
	telemetry.DefaultMetrics().SetServiceConnected(ctx, 1)

	if s.cfg.Ping.Enabled {
		s.wg.Add(1)
		go s.pingLoop(genCtx)
	}
	return nil
}

func (s *Service) handshake(ctx context.Context, tp *mcptransport.Transport) error {
	if err := doInitialize(ctx, tp.Client, config.DefaultProtocolVersion); err != nil {
		return mcperr.Wrap(mcperr.CodeProtocolError, "service: initialize handshake", err)
	}
	return nil
}

func (s *Service) fetchTools(ctx context.Context, tp *mcptransport.Transport) (map[string]ToolDescriptor, error) {
	descs, err := listTools(ctx, tp.Client)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.CodeProtocolError, "service: list tools", err)
	}
	out := make(map[string]ToolDescriptor, len(descs))
	for _, d := range descs {
		d.OwningService = s.cfg.Name
		out[d.Name] = d
	}
	return out, nil
}

func (s *Service) fail(err error) {
	s.mu.Lock()
	wasConnected := s.state == StateConnected
	s.state = StateFailed
	s.tools = make(map[string]ToolDescriptor)
	s.initialized = false
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
	slog.Error("mcp.service.failed", "service", s.cfg.Name, "error", err)
	if wasConnected {
		telemetry.DefaultMetrics().SetServiceConnected(context.Background(), -1)
	}
}

// handleConnectFailure applies the failure semantics: schedule a
// reconnect if configured and attempts remain, else transition to Failed.
func (s *Service) handleConnectFailure(ctx context.Context, cause error) error {
	s.mu.Lock()
	s.tools = make(map[string]ToolDescriptor)
	s.initialized = false
	if cause != nil {
		s.lastErr = cause.Error()
	}
	reconnectEnabled := s.cfg.Reconnect.Enabled
	attempts := s.reconnectAttempts
	maxAttempts := s.cfg.Reconnect.MaxAttempts
	s.mu.Unlock()

	if reconnectEnabled && attempts < maxAttempts {
		s.scheduleReconnect(ctx)
		return cause
	}
	s.fail(cause)
	return cause
}

// CallTool invokes a local tool name on this service. Precondition:
// Connected. Times out at the service's configured timeout.
func (s *Service) CallTool(ctx context.Context, localName string, args map[string]interface{}) (*ToolResult, error) {
	s.mu.RLock()
	if s.state != StateConnected || s.transport == nil {
		s.mu.RUnlock()
		return nil, mcperr.New(mcperr.CodeServiceUnavailable, "service: not connected")
	}
	tp := s.transport
	s.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	start := time.Now()
	result, err := callTool(callCtx, tp.Client, localName, args)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		var code mcperr.Code
		if callCtx.Err() != nil {
			code = mcperr.CodeTimeout
		} else {
			code = mcperr.CodeTransportError
		}
		telemetry.DefaultMetrics().RecordToolCall(ctx, s.cfg.Name, localName, elapsed, string(code))
		return nil, mcperr.Wrap(code, "service: tool call failed", err)
	}
	if result.IsError {
		telemetry.DefaultMetrics().RecordToolCall(ctx, s.cfg.Name, localName, elapsed, string(mcperr.CodeToolExecutionError))
		return nil, mcperr.New(mcperr.CodeToolExecutionError, result.ErrorText())
	}
	telemetry.DefaultMetrics().RecordToolCall(ctx, s.cfg.Name, localName, elapsed, "")
	return result, nil
}

// Disconnect tears the connection down without scheduling a reconnect.
// Idempotent.
func (s *Service) Disconnect() {
	s.mu.Lock()
	wasConnected := s.state == StateConnected
	tp := s.transport
	cancel := s.cancel
	reconnectCancel := s.reconnectCancel
	s.transport = nil
	s.cancel = nil
	s.reconnectCancel = nil
	s.tools = make(map[string]ToolDescriptor)
	s.initialized = false
	s.state = StateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if reconnectCancel != nil {
		// Wake a sleeping runReconnect immediately instead of letting
		// wg.Wait() block for the rest of the backoff delay.
		reconnectCancel()
	}
	s.wg.Wait()
	if tp != nil {
		_ = tp.Close()
	}
	if wasConnected {
		telemetry.DefaultMetrics().SetServiceConnected(context.Background(), -1)
	}
}

// Stop permanently shuts the service down; subsequent Connect calls fail.
// closed is set before Disconnect's wg.Wait() so a runReconnect goroutine
// already past its select (backoff elapsed, about to check s.closed) never
// reopens the transport after shutdown. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Disconnect()
}
