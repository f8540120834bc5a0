package lifecycle

import "sync"

// Registry tracks one Machine per running component and implements
// retrieve_component_status.
type Registry struct {
	mu        sync.RWMutex
	machines  map[string]*Machine
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{machines: make(map[string]*Machine)}
}

// Register adds or replaces the Machine tracked for name.
func (r *Registry) Register(name string, m *Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[name] = m
}

// Unregister removes name from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, name)
}

// RetrieveComponentStatus returns the reportable state of name, or
// ReportUnknown if no component by that name is tracked.
func (r *Registry) RetrieveComponentStatus(name string) ReportableState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[name]
	if !ok {
		return ReportUnknown
	}
	return Report(m.State())
}

// IsRegistered reports whether name is currently tracked.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.machines[name]
	return ok
}

// Names returns every tracked component name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.machines))
	for name := range r.machines {
		names = append(names, name)
	}
	return names
}
