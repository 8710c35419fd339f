package booking

import (
	"sync"

	"github.com/kaamwale/kaamwale-bookings/internal/dispatch"
)

// SourceFactory builds a dispatch source for one orchestrator. Each customer
// gets their own so watches never cross sessions of different customers.
type SourceFactory func() dispatch.Source

// Manager hands out one Orchestrator per customer, created lazily on first
// use. Orchestrators live for the process lifetime; an idle one holds no
// timers or watches.
type Manager struct {
	deps    Deps
	cfg     Config
	sources SourceFactory

	mu    sync.Mutex
	orchs map[string]*Orchestrator
}

func NewManager(deps Deps, cfg Config, sources SourceFactory) *Manager {
	return &Manager{
		deps:    deps,
		cfg:     cfg,
		sources: sources,
		orchs:   make(map[string]*Orchestrator),
	}
}

// ForCustomer returns the customer's orchestrator, creating and binding it on
// first access.
func (m *Manager) ForCustomer(customerID string) *Orchestrator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.orchs[customerID]; ok {
		return o
	}

	deps := m.deps
	if m.sources != nil {
		deps.Source = m.sources()
	}
	o := NewOrchestrator(customerID, deps, m.cfg)
	m.orchs[customerID] = o
	return o
}

// Snapshots returns the current state of every known customer, for the admin
// surface. The map key is the customer ID.
func (m *Manager) Snapshots() map[string]Snapshot {
	m.mu.Lock()
	orchs := make(map[string]*Orchestrator, len(m.orchs))
	for id, o := range m.orchs {
		orchs[id] = o
	}
	m.mu.Unlock()

	out := make(map[string]Snapshot, len(orchs))
	for id, o := range orchs {
		out[id] = o.Snapshot()
	}
	return out
}
