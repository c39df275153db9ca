package bundle

import (
	"fmt"
	"sort"
)

// Registry holds loaded bundle handles indexed by id. It is populated once
// at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	handles map[string]Handle
}

// NewRegistry creates an empty bundle registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]Handle),
	}
}

// Get retrieves a handle by bundle id.
func (r *Registry) Get(id string) (Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// All returns every registered handle sorted by bundle id, so full-registry
// sweeps iterate deterministically.
func (r *Registry) All() []Handle {
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Add registers a handle. Duplicate ids are rejected; first registration
// wins.
func (r *Registry) Add(h Handle) error {
	if h == nil {
		return fmt.Errorf("handle is nil")
	}
	if h.ID() == "" {
		return fmt.Errorf("bundle id is empty")
	}
	if _, exists := r.handles[h.ID()]; exists {
		return fmt.Errorf("bundle %q already registered", h.ID())
	}
	r.handles[h.ID()] = h
	return nil
}

// RecurringJob finds a bundle's job descriptor by name.
func (r *Registry) RecurringJob(bundleID, jobName string) (RecurringJob, bool) {
	h, ok := r.handles[bundleID]
	if !ok {
		return RecurringJob{}, false
	}
	for _, job := range h.RecurringJobs() {
		if job.Name == jobName {
			return job, true
		}
	}
	return RecurringJob{}, false
}

// Len returns the number of registered bundles.
func (r *Registry) Len() int {
	return len(r.handles)
}
