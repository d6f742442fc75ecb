package bridge

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
)

func TestInitializeAndResetRoundTrip(t *testing.T) {
	b := New()
	file := &config.File{
		Services: map[string]config.ServiceConfig{
			// No command/url: connect fails immediately, but LoadConfigs must
			// still register the service rather than aborting bring-up.
			"alpha": {},
		},
	}

	if err := b.Initialize(context.Background(), file); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	statuses := b.ListServices()
	if len(statuses) != 1 || statuses[0].Name != "alpha" {
		t.Fatalf("ListServices() = %+v, want one service named alpha", statuses)
	}

	if _, ok := b.GetServiceStatus("alpha"); !ok {
		t.Error("GetServiceStatus(alpha) not found")
	}
	if _, ok := b.GetServiceStatus("ghost"); ok {
		t.Error("GetServiceStatus(ghost) unexpectedly found")
	}

	b.Reset(context.Background())

	if statuses := b.ListServices(); len(statuses) != 0 {
		t.Errorf("ListServices() after Reset = %+v, want empty", statuses)
	}
}

func TestGetEndpointStatusNotFound(t *testing.T) {
	b := New()
	if _, err := b.GetEndpointStatus("wss://nope/ep"); err == nil {
		t.Error("expected error for unknown endpoint")
	}
}

func TestRemoveServiceNotFound(t *testing.T) {
	b := New()
	if err := b.RemoveService("ghost"); err == nil {
		t.Error("expected error removing unknown service")
	}
}
