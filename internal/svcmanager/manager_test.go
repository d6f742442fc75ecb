package svcmanager

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcpservice"
)

func TestAddServiceThenDuplicateRejected(t *testing.T) {
	m := New()
	ctx := context.Background()

	// Connect will fail (no command/url configured) but AddService still
	// registers the service — only LoadConfigs/AddService's own presence
	// check gates duplicates, not connectivity.
	if err := m.AddService(ctx, config.ServiceConfig{Name: "alpha"}); err != nil {
		t.Fatalf("AddService: %v", err)
	}

	names := m.ListServiceNames()
	if len(names) != 1 || names[0] != "alpha" {
		t.Fatalf("ListServiceNames() = %v, want [alpha]", names)
	}

	err := m.AddService(ctx, config.ServiceConfig{Name: "alpha"})
	if err == nil {
		t.Fatal("expected error adding duplicate service name")
	}
	if mcperr.CodeOf(err) != mcperr.CodeConfigError {
		t.Errorf("CodeOf(err) = %v, want CodeConfigError", mcperr.CodeOf(err))
	}
}

func TestRemoveServiceNotFound(t *testing.T) {
	m := New()
	err := m.RemoveService("ghost")
	if err == nil {
		t.Fatal("expected error removing unknown service")
	}
	if mcperr.CodeOf(err) != mcperr.CodeServiceNotFound {
		t.Errorf("CodeOf(err) = %v, want CodeServiceNotFound", mcperr.CodeOf(err))
	}
}

func TestListServiceNamesPreservesDeclarationOrder(t *testing.T) {
	m := New()
	ctx := context.Background()
	for _, name := range []string{"third", "first", "second"} {
		if err := m.AddService(ctx, config.ServiceConfig{Name: name}); err != nil {
			t.Fatalf("AddService(%s): %v", name, err)
		}
	}
	got := m.ListServiceNames()
	want := []string{"third", "first", "second"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListServiceNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCallToolUnknownName(t *testing.T) {
	m := New()
	_, err := m.CallTool(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if mcperr.CodeOf(err) != mcperr.CodeToolNotFound {
		t.Errorf("CodeOf(err) = %v, want CodeToolNotFound", mcperr.CodeOf(err))
	}
}

func TestCallToolServiceNotConnected(t *testing.T) {
	m := New()
	svc := mcpservice.New(config.ServiceConfig{Name: "svc"})

	// Directly wire a reverse-map entry, same as rebuildCatalog would after a
	// successful connect, without needing a live transport.
	m.mu.Lock()
	m.reverse["svc__foo"] = dispatchEntry{service: svc, localName: "foo"}
	m.mu.Unlock()

	_, err := m.CallTool(context.Background(), "svc__foo", nil)
	if err == nil {
		t.Fatal("expected error calling tool on a non-connected service")
	}
	if mcperr.CodeOf(err) != mcperr.CodeServiceUnavailable {
		t.Errorf("CodeOf(err) = %v, want CodeServiceUnavailable", mcperr.CodeOf(err))
	}
}

func TestStopClearsRegistryAndCatalog(t *testing.T) {
	m := New()
	ctx := context.Background()
	_ = m.AddService(ctx, config.ServiceConfig{Name: "alpha"})
	_ = m.AddService(ctx, config.ServiceConfig{Name: "beta"})

	m.Stop()

	if names := m.ListServiceNames(); len(names) != 0 {
		t.Errorf("ListServiceNames() after Stop = %v, want empty", names)
	}
	if tools := m.ListTools(); len(tools) != 0 {
		t.Errorf("ListTools() after Stop = %v, want empty", tools)
	}
}
