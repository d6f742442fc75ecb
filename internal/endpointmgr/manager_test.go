package endpointmgr

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/endpoint"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcpservice"
)

// fakeCatalog is a minimal no-op ToolCatalog; these tests exercise registry
// bookkeeping, not tool dispatch.
type fakeCatalog struct{}

func (fakeCatalog) ListTools() []mcpservice.ToolDescriptor { return nil }
func (fakeCatalog) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpservice.ToolResult, error) {
	return nil, nil
}

// cfgFor builds an EndpointConfig whose dial fails almost immediately
// (nothing listens on the port), so Connect returns quickly without a real
// upstream peer.
func cfgFor(url string) config.EndpointConfig {
	return config.EndpointConfig{URL: url, TimeoutMs: 50}
}

func TestAddEndpointThenDuplicateRejected(t *testing.T) {
	m := New(fakeCatalog{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := m.AddEndpoint(ctx, cfgFor("ws://127.0.0.1:1/a")); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	if err := m.AddEndpoint(ctx, cfgFor("ws://127.0.0.1:1/a")); err == nil {
		t.Fatal("expected error adding duplicate endpoint url")
	}
}

func TestRemoveEndpointNotFound(t *testing.T) {
	m := New(fakeCatalog{})
	ctx := context.Background()
	if err := m.RemoveEndpoint(ctx, "ws://nope/ep"); err == nil {
		t.Fatal("expected error removing unknown endpoint")
	}
}

func TestStatusForNotFound(t *testing.T) {
	m := New(fakeCatalog{})
	if _, err := m.StatusFor("ws://nope/ep"); err == nil {
		t.Fatal("expected error for unknown endpoint status")
	}
}

func TestConnectDisconnectEndpointRequireRegistration(t *testing.T) {
	m := New(fakeCatalog{})
	if err := m.ConnectEndpoint(context.Background(), "ws://nope/ep"); err == nil {
		t.Fatal("expected error connecting an unregistered endpoint")
	}
	if err := m.DisconnectEndpoint("ws://nope/ep"); err == nil {
		t.Fatal("expected error disconnecting an unregistered endpoint")
	}
}

// TestApplyConfigDeltaReconcilesRegistry checks the registry after a delta:
// a URL in both sets stays registered, a new URL is added, and a URL
// missing from the desired set is removed. The order of additions and
// removals is not observed here.
func TestApplyConfigDeltaReconcilesRegistry(t *testing.T) {
	m := New(fakeCatalog{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.AddEndpoint(ctx, cfgFor("ws://127.0.0.1:1/keep")); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	if err := m.AddEndpoint(ctx, cfgFor("ws://127.0.0.1:1/drop")); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}

	desired := []config.EndpointConfig{
		cfgFor("ws://127.0.0.1:1/keep"),
		cfgFor("ws://127.0.0.1:1/new"),
	}
	if err := m.ApplyConfigDelta(ctx, desired); err != nil {
		t.Fatalf("ApplyConfigDelta: %v", err)
	}

	urls := map[string]bool{}
	for _, s := range m.Status() {
		urls[s.URL] = true
	}
	if !urls["ws://127.0.0.1:1/keep"] {
		t.Errorf("expected kept endpoint to remain registered")
	}
	if !urls["ws://127.0.0.1:1/new"] {
		t.Errorf("expected new endpoint to be added")
	}
	if urls["ws://127.0.0.1:1/drop"] {
		t.Errorf("expected dropped endpoint to be removed")
	}
	if len(urls) != 2 {
		t.Errorf("Status() = %v, want exactly 2 registered endpoints", urls)
	}
}

func TestStopIsIdempotentOnEmptyManager(t *testing.T) {
	m := New(fakeCatalog{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)
	m.Stop(ctx)
}

var _ endpoint.ToolCatalog = fakeCatalog{}
