// Package config holds the data shapes the bridge core is configured with:
// ServiceConfig (downstream MCP services) and EndpointConfig (upstream
// WebSocket endpoints), plus a thin JSON/YAML loader. Schema validation, CLI
// flags, and a general configuration framework are an external collaborator
// per the core's scope — this package owns only what the core itself reads.
package config

import (
	"fmt"
	"strings"
	"time"
)

// TransportKind identifies how a Service is reached.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportSSE            TransportKind = "sse"
	TransportStreamableHTTP TransportKind = "streamableHttp"
)

// ReconnectConfig tunes the exponential-backoff reconnect loop.
type ReconnectConfig struct {
	Enabled           bool `json:"enabled"`
	MaxAttempts       int  `json:"maxAttempts"`
	InitialIntervalMs int  `json:"initialIntervalMs"`
	MaxIntervalMs     int  `json:"maxIntervalMs"`
	BackoffMultiplier float64 `json:"backoffMultiplier"`
}

func (r ReconnectConfig) initialInterval() time.Duration {
	return time.Duration(r.InitialIntervalMs) * time.Millisecond
}

func (r ReconnectConfig) maxInterval() time.Duration {
	return time.Duration(r.MaxIntervalMs) * time.Millisecond
}

// Delay returns the backoff delay before reconnect attempt n (1-indexed):
// delay_n = min(maxInterval, initialInterval * multiplier^(n-1)).
func (r ReconnectConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := r.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	initial := r.initialInterval()
	max := r.maxInterval()
	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if max > 0 && delay > max {
			delay = max
			break
		}
	}
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

// PingConfig tunes the liveness ping loop.
type PingConfig struct {
	Enabled      bool `json:"enabled"`
	IntervalMs   int  `json:"intervalMs"`
	TimeoutMs    int  `json:"timeoutMs"`
	MaxFailures  int  `json:"maxFailures"`
	StartDelayMs int  `json:"startDelayMs"`
}

func (p PingConfig) Interval() time.Duration   { return time.Duration(p.IntervalMs) * time.Millisecond }
func (p PingConfig) Timeout() time.Duration    { return time.Duration(p.TimeoutMs) * time.Millisecond }
func (p PingConfig) StartDelay() time.Duration { return time.Duration(p.StartDelayMs) * time.Millisecond }

// ServiceConfig is the immutable descriptor of a downstream MCP service.
type ServiceConfig struct {
	Name          string            `json:"name"`
	Transport     TransportKind     `json:"transport,omitempty"` // inferred when empty
	Command       string            `json:"command,omitempty"`
	Args          []string          `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	URL           string            `json:"url,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Reconnect     ReconnectConfig   `json:"reconnect"`
	Ping          PingConfig        `json:"ping"`
	TimeoutMs     int               `json:"timeoutMs"`
}

func (c ServiceConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ResolvedTransport returns the configured transport kind, inferring it from
// the other fields when Transport is unset: presence of Command ⇒ stdio;
// URL path containing "/sse" ⇒ sse; otherwise ⇒ streamableHttp.
func (c ServiceConfig) ResolvedTransport() TransportKind {
	if c.Transport != "" {
		return c.Transport
	}
	if c.Command != "" {
		return TransportStdio
	}
	if strings.Contains(c.URL, "/sse") {
		return TransportSSE
	}
	return TransportStreamableHTTP
}

// Validate checks that the config is internally consistent enough to attempt
// a connection. It does not check reachability.
func (c ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service config: name is required")
	}
	switch c.ResolvedTransport() {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("service %q: stdio transport requires command", c.Name)
		}
	case TransportSSE, TransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("service %q: %s transport requires url", c.Name, c.ResolvedTransport())
		}
	default:
		return fmt.Errorf("service %q: unsupported transport %q", c.Name, c.Transport)
	}
	return nil
}

// RetryConfig tunes the Endpoint-level tool-call retry policy.
type RetryConfig struct {
	MaxAttempts    int      `json:"maxAttempts"`
	InitialDelayMs int      `json:"initialDelayMs"`
	MaxDelayMs     int      `json:"maxDelayMs"`
	Multiplier     float64  `json:"multiplier"`
	RetryableCodes []string `json:"retryableCodes,omitempty"`
}

func (r RetryConfig) Delay(attempt int) time.Duration {
	mult := r.Multiplier
	if mult <= 0 {
		mult = 1
	}
	initial := time.Duration(r.InitialDelayMs) * time.Millisecond
	max := time.Duration(r.MaxDelayMs) * time.Millisecond
	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if max > 0 && delay > max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// HeartbeatConfig tunes the Endpoint's outbound heartbeat.
type HeartbeatConfig struct {
	IntervalMs        int `json:"intervalMs"`
	MissedPongLimit   int `json:"missedPongLimit"`
}

func (h HeartbeatConfig) Interval() time.Duration {
	if h.IntervalMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.IntervalMs) * time.Millisecond
}

// RateLimitConfig caps how fast an Endpoint will accept tools/call requests
// from its upstream peer, protecting the downstream services it fans out to
// from a single noisy or misbehaving peer.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
}

// Enabled reports whether a limiter should be installed at all.
func (r RateLimitConfig) Enabled() bool { return r.RequestsPerSecond > 0 }

// EndpointConfig describes one upstream WebSocket endpoint.
type EndpointConfig struct {
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	ProtocolVersion string            `json:"protocolVersion,omitempty"`
	Reconnect       ReconnectConfig   `json:"reconnect"`
	Heartbeat       HeartbeatConfig   `json:"heartbeat"`
	Retry           RetryConfig       `json:"retry"`
	RateLimit       RateLimitConfig   `json:"rateLimit"`
	TimeoutMs       int               `json:"timeoutMs"`
}

func (c EndpointConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c EndpointConfig) Version() string {
	if c.ProtocolVersion == "" {
		return DefaultProtocolVersion
	}
	return c.ProtocolVersion
}

// DefaultProtocolVersion is the MCP protocol version advertised both
// upstream (Endpoint, serving) and downstream (Service, handshaking). An
// Endpoint can override it with ProtocolVersion; the Service handshake
// always uses this value.
const DefaultProtocolVersion = "2024-11-05"

// Validate checks the endpoint config is well-formed.
func (c EndpointConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("endpoint config: url is required")
	}
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("endpoint config: url %q must be ws:// or wss://", c.URL)
	}
	return nil
}

// File is the on-disk shape loaded by Load: a named map of services and a
// list of endpoint URLs/configs, keyed by name the way an MCP client's
// server map is keyed.
type File struct {
	Services  map[string]ServiceConfig `json:"services" yaml:"services"`
	Endpoints []EndpointConfig         `json:"endpoints" yaml:"endpoints"`
}

// ServiceConfigs returns the services keyed by name with Name populated
// from the map key; names never round-trip through the value's own JSON.
// The slice follows Go's map iteration order, not the order in which the
// services appear in the file, so the Service Manager's first-declarer-wins
// collision rule sees services loaded this way in an unspecified order.
func (f File) ServiceConfigs() []ServiceConfig {
	out := make([]ServiceConfig, 0, len(f.Services))
	for name, cfg := range f.Services {
		cfg.Name = name
		out = append(out, cfg)
	}
	return out
}
