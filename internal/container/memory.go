package container

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// Registry holds registrations for the lifetime of the process.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]core.ContainerSpec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]core.ContainerSpec)}
}

// Session opens a session over the registry.
func (r *Registry) Session(_ context.Context) (Session, error) {
	return &memorySession{registry: r}, nil
}

// List returns the registered containers ordered by id.
func (r *Registry) List(_ context.Context) ([]core.ContainerSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(r.specs))
	out := make([]core.ContainerSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.specs[id])
	}
	return out, nil
}

func (r *Registry) lookup(id string) (core.ContainerSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[id]
	return spec, ok
}

func (r *Registry) store(specs []core.ContainerSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		r.specs[spec.ID] = spec
	}
}

type memorySession struct {
	registry *Registry
	pending
}

func (s *memorySession) Register(_ context.Context, spec core.ContainerSpec) (*core.DatasetContainer, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	c := register(spec)
	s.add(c)
	return c, nil
}

func (s *memorySession) Get(_ context.Context, id string) (*core.DatasetContainer, error) {
	if c, ok := s.get(id); ok {
		return c, nil
	}
	spec, ok := s.registry.lookup(id)
	if !ok {
		return nil, &core.NotFoundError{Kind: "container", Key: id}
	}
	c := core.NewDatasetContainer(spec)
	s.touch(c)
	return c, nil
}

func (s *memorySession) Seen() []core.Aggregate { return s.seen }

func (s *memorySession) Commit(_ context.Context) error {
	s.registry.store(s.specs())
	s.reset()
	return nil
}

func (s *memorySession) Rollback(_ context.Context) error {
	s.reset()
	return nil
}
