package taxonomy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/partcat/internal/domain"
)

// Registry holds named taxonomy snapshots and which one is active.
// A run takes its snapshot once; later Put/SetActive calls never affect it.
type Registry struct {
	mu        sync.RWMutex
	snapshots map[string]*Taxonomy
	active    string
}

// NewRegistry creates a registry with the given default active name.
func NewRegistry(active string) *Registry {
	return &Registry{snapshots: make(map[string]*Taxonomy), active: active}
}

// Put stores or replaces a snapshot under its name.
func (r *Registry) Put(t *Taxonomy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[t.Name()] = t
	if r.active == "" {
		r.active = t.Name()
	}
}

// Get returns the named snapshot; an empty name selects the active one.
func (r *Registry) Get(name string) (*Taxonomy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.active
	}
	t, ok := r.snapshots[name]
	if !ok {
		return nil, fmt.Errorf("taxonomy %q: %w", name, domain.ErrTaxonomyNotFound)
	}
	return t, nil
}

// SetActive switches the active snapshot.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snapshots[name]; !ok {
		return fmt.Errorf("taxonomy %q: %w", name, domain.ErrTaxonomyNotFound)
	}
	r.active = name
	return nil
}

// ActiveName returns the active snapshot name.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// List returns summaries of all snapshots sorted by name.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.snapshots))
	for _, t := range r.snapshots {
		out = append(out, t.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
