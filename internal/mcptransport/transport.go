// Package mcptransport builds the per-service downstream MCP transport
// (stdio, SSE, or streamable HTTP) and exposes only the framing capability:
// open, close, and a bidirectional JSON-RPC channel. It never interprets
// MCP semantics (handshake, tool tables, pings) — that is the Service
// layer's job (internal/mcpservice).
//
// Construction selects among the three mark3labs/mcp-go client
// constructors by transport kind.
package mcptransport

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
)

// Transport is the narrow capability set behind which stdio/sse/streamable
// HTTP are a closed variant. The concrete channel is
// a *mcpclient.Client: mcp-go's client already speaks raw JSON-RPC framing
// over whichever wire transport it was built with, which is the framing
// primitive this type exists to select and own the lifecycle of.
type Transport struct {
	Kind   config.TransportKind
	Client *mcpclient.Client
}

// Open constructs and starts the transport for cfg. The Service layer calls
// Open as the first step of connect() and applies cfg.Timeout() itself via
// the context it passes in.
func Open(ctx context.Context, cfg config.ServiceConfig) (*Transport, error) {
	kind := cfg.ResolvedTransport()

	cli, err := newClient(kind, cfg)
	if err != nil {
		return nil, fmt.Errorf("mcptransport: build %s client for %q: %w", kind, cfg.Name, err)
	}

	// stdio auto-starts its child process on construction; sse and
	// streamable-http need an explicit Start to open the network connection.
	if kind != config.TransportStdio {
		if startErr := cli.Start(ctx); startErr != nil {
			_ = cli.Close()
			return nil, fmt.Errorf("mcptransport: start %s transport for %q: %w", kind, cfg.Name, startErr)
		}
	}

	return &Transport{Kind: kind, Client: cli}, nil
}

func newClient(kind config.TransportKind, cfg config.ServiceConfig) (*mcpclient.Client, error) {
	switch kind {
	case config.TransportStdio:
		envSlice := mapToEnvSlice(cfg.Env)
		return mcpclient.NewStdioMCPClient(cfg.Command, envSlice, cfg.Args...)

	case config.TransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)

	case config.TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %q", kind)
	}
}

// Close tears the transport down. Safe to call more than once.
func (t *Transport) Close() error {
	if t == nil || t.Client == nil {
		return nil
	}
	return t.Client.Close()
}

func mapToEnvSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	s := make([]string, 0, len(env))
	for k, v := range env {
		s = append(s, k+"="+v)
	}
	return s
}
