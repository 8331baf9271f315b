package source

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages available content sources
type Registry struct {
	mu      sync.RWMutex
	sources map[string]ContentSource
}

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]ContentSource),
	}
}

// Register adds a source to the registry
func (r *Registry) Register(source ContentSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.ID()] = source
}

// Get retrieves a source by ID
func (r *Registry) Get(id string) (ContentSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("source not found: %s", id)
	}
	return source, nil
}

// List returns all registered sources ordered by ID
func (r *Registry) List() []ContentSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]ContentSource, 0, len(r.sources))
	for _, s := range r.sources {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID() < sources[j].ID() })
	return sources
}
