// Package svcmanager implements the Service Manager: a registry of
// mcpservice.Service instances, the aggregated tool catalog with collision
// prefixing, and dispatch of tool calls to the owning service. Adapted from
// a single-process-wide tool registry to an external-name reverse map.
package svcmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcpservice"
)

// dispatchEntry is the reverse-map target: which service and local name an
// external tool name resolves to.
type dispatchEntry struct {
	service   *mcpservice.Service
	localName string
}

// Manager owns the set of Services and publishes the union of their tool
// tables as a single external catalog.
type Manager struct {
	mu sync.RWMutex

	// order preserves config-declaration order, which the collision policy
	// depends on: a local name's first declarer keeps the short form.
	order    []string
	services map[string]*mcpservice.Service

	catalog []mcpservice.ToolDescriptor // built fresh on every structural change
	reverse map[string]dispatchEntry
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		services: make(map[string]*mcpservice.Service),
		reverse:  make(map[string]dispatchEntry),
	}
}

// LoadConfigs creates one Service per ServiceConfig, in the given order, and
// connects them all concurrently via errgroup — bounded by nothing but the
// caller's context, since each Service already self-limits with its own
// cfg.Timeout(). A single service failing to connect never aborts the
// others: reconnect/Failed handling is per-service.
func (m *Manager) LoadConfigs(ctx context.Context, cfgs []config.ServiceConfig) error {
	m.mu.Lock()
	for _, cfg := range cfgs {
		if _, exists := m.services[cfg.Name]; exists {
			continue
		}
		svc := mcpservice.New(cfg)
		m.services[cfg.Name] = svc
		m.order = append(m.order, cfg.Name)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range cfgs {
		svc := m.get(cfg.Name)
		if svc == nil {
			continue
		}
		g.Go(func() error {
			if err := svc.Connect(gctx); err != nil {
				slog.Warn("svcmanager.service_connect_failed", "service", svc.Name(), "error", err)
			}
			return nil // one service's failure never aborts the group
		})
	}
	_ = g.Wait()

	m.rebuildCatalog()
	return nil
}

func (m *Manager) get(name string) *mcpservice.Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.services[name]
}

// AddService creates and connects a new Service, then republishes the
// catalog. Adding a name that already exists is a no-op returning an error.
func (m *Manager) AddService(ctx context.Context, cfg config.ServiceConfig) error {
	m.mu.Lock()
	if _, exists := m.services[cfg.Name]; exists {
		m.mu.Unlock()
		return mcperr.New(mcperr.CodeConfigError, fmt.Sprintf("svcmanager: service %q already exists", cfg.Name))
	}
	svc := mcpservice.New(cfg)
	m.services[cfg.Name] = svc
	m.order = append(m.order, cfg.Name)
	m.mu.Unlock()

	if err := svc.Connect(ctx); err != nil {
		slog.Warn("svcmanager.add_service_connect_failed", "service", cfg.Name, "error", err)
	}
	m.rebuildCatalog()
	return nil
}

// RemoveService disconnects and removes a Service. The removed name
// vanishes from the external catalog only once the Service has fully
// Disconnected — Stop() blocks until that is true, so by the time we
// rebuild the catalog the invariant already holds.
func (m *Manager) RemoveService(name string) error {
	m.mu.Lock()
	svc, ok := m.services[name]
	if !ok {
		m.mu.Unlock()
		return mcperr.New(mcperr.CodeServiceNotFound, fmt.Sprintf("svcmanager: service %q not found", name))
	}
	delete(m.services, name)
	m.order = removeString(m.order, name)
	m.mu.Unlock()

	svc.Stop()
	m.rebuildCatalog()
	return nil
}

// UpdateService is remove+add, never an in-place mutation of a connected
// Service.
func (m *Manager) UpdateService(ctx context.Context, cfg config.ServiceConfig) error {
	_ = m.RemoveService(cfg.Name) // absent is fine; update may be adding a previously-unknown service
	return m.AddService(ctx, cfg)
}

// rebuildCatalog sweeps services in declaration order, applying collision
// prefixing: a local name's first declarer keeps the short form; later
// collisions are exposed as "service__tool". The reverse map is swapped
// atomically so readers never see a partially built map.
func (m *Manager) rebuildCatalog() {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	services := make(map[string]*mcpservice.Service, len(m.services))
	for k, v := range m.services {
		services[k] = v
	}
	m.mu.RUnlock()

	seen := make(map[string]string) // local name -> owning service that claimed the short form
	reverse := make(map[string]dispatchEntry)
	var catalog []mcpservice.ToolDescriptor

	for _, name := range order {
		svc, ok := services[name]
		if !ok {
			continue
		}
		tools := svc.Tools()
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
		for _, t := range tools {
			external := t.Name
			if owner, collide := seen[t.Name]; collide && owner != name {
				external = name + "__" + t.Name
			} else {
				seen[t.Name] = name
			}
			d := t
			d.Name = external
			catalog = append(catalog, d)
			reverse[external] = dispatchEntry{service: svc, localName: t.Name}
		}
	}

	m.mu.Lock()
	m.catalog = catalog
	m.reverse = reverse
	m.mu.Unlock()
}

// ListTools returns the current aggregated catalog.
func (m *Manager) ListTools() []mcpservice.ToolDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]mcpservice.ToolDescriptor, len(m.catalog))
	copy(out, m.catalog)
	return out
}

// CallTool resolves externalName via the reverse map and dispatches to the
// owning service. Retry is explicitly NOT performed here — it belongs to
// the Endpoint layer, which owns the upstream request id and deadline.
func (m *Manager) CallTool(ctx context.Context, externalName string, args map[string]interface{}) (*mcpservice.ToolResult, error) {
	m.mu.RLock()
	entry, ok := m.reverse[externalName]
	m.mu.RUnlock()
	if !ok {
		return nil, mcperr.New(mcperr.CodeToolNotFound, fmt.Sprintf("svcmanager: tool %q not found", externalName))
	}
	if entry.service.State() != mcpservice.StateConnected {
		return nil, mcperr.New(mcperr.CodeServiceUnavailable, fmt.Sprintf("svcmanager: service %q unavailable", entry.service.Name()))
	}
	return entry.service.CallTool(ctx, entry.localName, args)
}

// Status returns per-service status snapshots.
func (m *Manager) Status() []mcpservice.Status {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	services := make(map[string]*mcpservice.Service, len(m.services))
	for k, v := range m.services {
		services[k] = v
	}
	m.mu.RUnlock()

	out := make([]mcpservice.Status, 0, len(order))
	for _, name := range order {
		if svc, ok := services[name]; ok {
			out = append(out, svc.Status())
		}
	}
	return out
}

// ListServiceNames returns the configured service names in declaration order.
func (m *Manager) ListServiceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Stop disconnects every service and clears the registry. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	services := make([]*mcpservice.Service, 0, len(m.services))
	for _, v := range m.services {
		services = append(services, v)
	}
	m.services = make(map[string]*mcpservice.Service)
	m.order = nil
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, svc := range services {
		wg.Add(1)
		go func(s *mcpservice.Service) {
			defer wg.Done()
			s.Stop()
		}(svc)
	}
	wg.Wait()

	m.rebuildCatalog()
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
