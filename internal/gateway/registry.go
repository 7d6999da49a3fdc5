package gateway

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry holds at most one persistent agent per name. A newer connection
// for the same name replaces and closes the older one.
type Registry struct {
	agents map[string]*Agent
	mu     sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*Agent),
	}
}

func (r *Registry) Register(a *Agent) {
	r.mu.Lock()
	existing, replaced := r.agents[a.name]
	r.agents[a.name] = a
	total := len(r.agents)
	r.mu.Unlock()

	if replaced && existing != a {
		slog.Warn("Node already connected, replacing connection",
			"node", a.name,
			"previous_remote_addr", existing.remoteAddr)
		existing.Close()
	}

	slog.Info("Node registered",
		"node", a.name,
		"remote_addr", a.remoteAddr,
		"total_connections", total)
}

// Deregister removes a only if it is still the registered agent for its
// name, so a replaced connection never evicts its successor.
func (r *Registry) Deregister(a *Agent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.agents[a.name]; !ok || current != a {
		return false
	}
	delete(r.agents, a.name)

	slog.Info("Node deregistered",
		"node", a.name,
		"total_connections", len(r.agents))
	return true
}

// Disconnect closes the named agent's connection. The receive loop then
// deregisters it.
func (r *Registry) Disconnect(name string) bool {
	a, ok := r.Get(name)
	if !ok {
		return false
	}
	a.Close()
	r.Deregister(a)
	return true
}

func (r *Registry) Get(name string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	return a, ok
}

// List returns the connected agents sorted by name.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.mu.RUnlock()

	sort.Slice(agents, func(i, j int) bool { return agents[i].name < agents[j].name })
	return agents
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.agents)
}

func (r *Registry) Stop() {
	r.mu.Lock()
	agents := r.agents
	r.agents = make(map[string]*Agent)
	r.mu.Unlock()

	for _, a := range agents {
		a.Close()
	}
	slog.Info("All node connections closed", "count", len(agents))
}
