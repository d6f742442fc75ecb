// Package bridge assembles the Service Manager and Endpoint Manager into a
// single process-scoped container and exposes the admin operations as
// plain Go methods — no global singletons, unlike a package-level
// manager convention.
package bridge

import (
	"context"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/endpoint"
	"github.com/nextlevelbuilder/mcpbridge/internal/endpointmgr"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcpservice"
	"github.com/nextlevelbuilder/mcpbridge/internal/svcmanager"
)

// Bridge owns exactly one Service Manager and one Endpoint Manager. Callers
// construct one Bridge per process; tests construct as many as they like.
type Bridge struct {
	services  *svcmanager.Manager
	endpoints *endpointmgr.Manager
}

// New creates a Bridge whose Endpoint Manager dispatches tool calls against
// the Service Manager's aggregated catalog.
func New() *Bridge {
	svc := svcmanager.New()
	ep := endpointmgr.New(svc)
	return &Bridge{services: svc, endpoints: ep}
}

// Initialize brings both managers up from a loaded config file: services
// connect first so the endpoints' initial tools/list responses are
// populated from the start.
func (b *Bridge) Initialize(ctx context.Context, file *config.File) error {
	if err := b.services.LoadConfigs(ctx, file.ServiceConfigs()); err != nil {
		return err
	}
	return b.endpoints.Initialize(ctx, file.Endpoints)
}

// Reset tears both managers down so Initialize can be called again with a
// fresh config (used by tests and by the serve command at shutdown).
func (b *Bridge) Reset(ctx context.Context) {
	b.endpoints.Stop(ctx)
	b.services.Stop()
}

// ApplyConfigDelta reconciles endpoints against a new desired set without
// touching services.
func (b *Bridge) ApplyConfigDelta(ctx context.Context, file *config.File) error {
	return b.endpoints.ApplyConfigDelta(ctx, file.Endpoints)
}

// --- admin operations: services ---

func (b *Bridge) ListServices() []mcpservice.Status { return b.services.Status() }

func (b *Bridge) GetServiceStatus(name string) (mcpservice.Status, bool) {
	for _, s := range b.services.Status() {
		if s.Name == name {
			return s, true
		}
	}
	return mcpservice.Status{}, false
}

func (b *Bridge) AddService(ctx context.Context, cfg config.ServiceConfig) error {
	return b.services.AddService(ctx, cfg)
}

func (b *Bridge) RemoveService(name string) error {
	return b.services.RemoveService(name)
}

func (b *Bridge) UpdateService(ctx context.Context, cfg config.ServiceConfig) error {
	return b.services.UpdateService(ctx, cfg)
}

// --- admin operations: endpoints ---

func (b *Bridge) ListEndpoints() []endpoint.Status { return b.endpoints.Status() }

func (b *Bridge) GetEndpointStatus(url string) (endpoint.Status, error) {
	return b.endpoints.StatusFor(url)
}

func (b *Bridge) AddEndpoint(ctx context.Context, cfg config.EndpointConfig) error {
	return b.endpoints.AddEndpoint(ctx, cfg)
}

func (b *Bridge) RemoveEndpoint(ctx context.Context, url string) error {
	return b.endpoints.RemoveEndpoint(ctx, url)
}

func (b *Bridge) ConnectEndpoint(ctx context.Context, url string) error {
	return b.endpoints.ConnectEndpoint(ctx, url)
}

func (b *Bridge) DisconnectEndpoint(url string) error {
	return b.endpoints.DisconnectEndpoint(url)
}

// --- admin operations: tools ---

func (b *Bridge) ListTools() []mcpservice.ToolDescriptor { return b.services.ListTools() }

func (b *Bridge) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpservice.ToolResult, error) {
	return b.services.CallTool(ctx, name, args)
}
