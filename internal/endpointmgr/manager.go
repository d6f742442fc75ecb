// Package endpointmgr implements the Independent Endpoint Manager: parallel
// supervision of every configured upstream Endpoint, keyed by URL, with
// config-delta application and a periodic health sweep that observes but
// never itself triggers reconnects (that stays the Endpoint's own job).
// Uses the same errgroup-fan-out shape as svcmanager.Manager.LoadConfigs,
// generalized to Endpoints.
package endpointmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/endpoint"
)

// Manager owns the set of Endpoints, keyed by URL.
type Manager struct {
	mu        sync.RWMutex
	catalog   endpoint.ToolCatalog
	endpoints map[string]*endpoint.Endpoint

	healthCancel context.CancelFunc
	healthWG     sync.WaitGroup
}

// New creates an empty Manager dispatching every Endpoint's tool operations
// against catalog.
func New(catalog endpoint.ToolCatalog) *Manager {
	return &Manager{catalog: catalog, endpoints: make(map[string]*endpoint.Endpoint)}
}

// Initialize connects every configured endpoint concurrently. It returns
// once each endpoint's first connect attempt has finished, connected or
// not; an endpoint whose first attempt failed keeps retrying in the
// background under its own reconnect config, and Initialize does not wait
// for those retries.
func (m *Manager) Initialize(ctx context.Context, cfgs []config.EndpointConfig) error {
	m.mu.Lock()
	for _, cfg := range cfgs {
		if _, exists := m.endpoints[cfg.URL]; exists {
			continue
		}
		m.endpoints[cfg.URL] = endpoint.New(cfg, m.catalog)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range cfgs {
		ep := m.get(cfg.URL)
		if ep == nil {
			continue
		}
		g.Go(func() error {
			if err := ep.Connect(gctx); err != nil {
				slog.Warn("endpointmgr.endpoint_connect_failed", "url", ep.URL(), "error", err)
			}
			return nil // one endpoint's failure never aborts bring-up of the others
		})
	}
	_ = g.Wait()

	m.startHealthSweep()
	return nil
}

func (m *Manager) get(url string) *endpoint.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.endpoints[url]
}

// AddEndpoint connects a single new endpoint by URL.
func (m *Manager) AddEndpoint(ctx context.Context, cfg config.EndpointConfig) error {
	m.mu.Lock()
	if _, exists := m.endpoints[cfg.URL]; exists {
		m.mu.Unlock()
		return fmt.Errorf("endpointmgr: endpoint %q already exists", cfg.URL)
	}
	ep := endpoint.New(cfg, m.catalog)
	m.endpoints[cfg.URL] = ep
	m.mu.Unlock()

	if err := ep.Connect(ctx); err != nil {
		slog.Warn("endpointmgr.add_endpoint_connect_failed", "url", cfg.URL, "error", err)
	}
	return nil
}

// RemoveEndpoint stops and removes an endpoint. Bounded by ctx so it cannot
// hang on a stuck peer.
func (m *Manager) RemoveEndpoint(ctx context.Context, url string) error {
	m.mu.Lock()
	ep, ok := m.endpoints[url]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("endpointmgr: endpoint %q not found", url)
	}
	delete(m.endpoints, url)
	m.mu.Unlock()

	ep.Stop(ctx)
	return nil
}

// ApplyConfigDelta reconciles the live set against the desired URL list.
// Additions are applied before removals. A URL present in both the old and
// new set keeps its running Endpoint untouched; a changed config for such a
// URL is not applied.
func (m *Manager) ApplyConfigDelta(ctx context.Context, desired []config.EndpointConfig) error {
	m.mu.RLock()
	current := make(map[string]bool, len(m.endpoints))
	for url := range m.endpoints {
		current[url] = true
	}
	m.mu.RUnlock()

	desiredSet := make(map[string]config.EndpointConfig, len(desired))
	for _, cfg := range desired {
		desiredSet[cfg.URL] = cfg
	}

	var toAdd []config.EndpointConfig
	for url, cfg := range desiredSet {
		if !current[url] {
			toAdd = append(toAdd, cfg)
		}
	}
	var toRemove []string
	for url := range current {
		if _, keep := desiredSet[url]; !keep {
			toRemove = append(toRemove, url)
		}
	}

	for _, cfg := range toAdd {
		if err := m.AddEndpoint(ctx, cfg); err != nil {
			slog.Warn("endpointmgr.delta_add_failed", "url", cfg.URL, "error", err)
		}
	}
	for _, url := range toRemove {
		if err := m.RemoveEndpoint(ctx, url); err != nil {
			slog.Warn("endpointmgr.delta_remove_failed", "url", url, "error", err)
		}
	}
	return nil
}

// ConnectEndpoint (re)connects an already-registered endpoint on demand,
// e.g. after an admin manually disconnected it.
func (m *Manager) ConnectEndpoint(ctx context.Context, url string) error {
	ep := m.get(url)
	if ep == nil {
		return fmt.Errorf("endpointmgr: endpoint %q not found", url)
	}
	return ep.Connect(ctx)
}

// DisconnectEndpoint tears an endpoint's connection down without removing
// it from the registry or scheduling a reconnect.
func (m *Manager) DisconnectEndpoint(url string) error {
	ep := m.get(url)
	if ep == nil {
		return fmt.Errorf("endpointmgr: endpoint %q not found", url)
	}
	ep.Disconnect()
	return nil
}

// Status returns every endpoint's current snapshot.
func (m *Manager) Status() []endpoint.Status {
	m.mu.RLock()
	eps := make([]*endpoint.Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		eps = append(eps, ep)
	}
	m.mu.RUnlock()

	out := make([]endpoint.Status, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.Status())
	}
	return out
}

// StatusFor returns one endpoint's snapshot.
func (m *Manager) StatusFor(url string) (endpoint.Status, error) {
	ep := m.get(url)
	if ep == nil {
		return endpoint.Status{}, fmt.Errorf("endpointmgr: endpoint %q not found", url)
	}
	return ep.Status(), nil
}

// startHealthSweep runs a periodic pass that only observes and logs
// aggregate state; it must never itself drive a reconnect — that stays
// the Endpoint's own ping/backoff responsibility.
func (m *Manager) startHealthSweep() {
	ctx, cancel := context.WithCancel(context.Background())
	m.healthCancel = cancel
	m.healthWG.Add(1)
	go func() {
		defer m.healthWG.Done()
		ticker := time.NewTicker(healthSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.logHealthSnapshot()
			}
		}
	}()
}

const healthSweepInterval = 1 * time.Minute

func (m *Manager) logHealthSnapshot() {
	statuses := m.Status()
	connected := 0
	for _, s := range statuses {
		if s.State == endpoint.StateConnected {
			connected++
		}
	}
	slog.Debug("endpointmgr.health_sweep", "total", len(statuses), "connected", connected)
}

// Stop stops every endpoint and the health sweep. Idempotent.
func (m *Manager) Stop(ctx context.Context) {
	if m.healthCancel != nil {
		m.healthCancel()
		m.healthWG.Wait()
	}

	m.mu.Lock()
	eps := make([]*endpoint.Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		eps = append(eps, ep)
	}
	m.endpoints = make(map[string]*endpoint.Endpoint)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, ep := range eps {
		wg.Add(1)
		go func(e *endpoint.Endpoint) {
			defer wg.Done()
			e.Stop(ctx)
		}(ep)
	}
	wg.Wait()
}
