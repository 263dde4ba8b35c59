package resource

import (
	"context"
	"sync"

	"github.com/jgarte/gn-proxy/access"
)

// MemoryStore provides an in-memory implementation of Store. This is useful
// for testing, development, and simple single-instance deployments. For
// production use a persistent store.
type MemoryStore struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewMemoryStore creates a new in-memory resource store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[string]*Resource),
	}
}

// Get returns a copy of the stored resource.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.resources[id]
	if !ok {
		return nil, access.Errf(access.ErrResourceNotFound, "resource %q not found", id)
	}
	return res.Clone(), nil
}

// CreateIfAbsent stores the resource unless its id already exists.
func (s *MemoryStore) CreateIfAbsent(ctx context.Context, res *Resource) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[res.ID]; exists {
		return false, nil
	}
	s.resources[res.ID] = res.Clone()
	return true, nil
}

// AtomicUpdate mutates the stored record under the store lock.
func (s *MemoryStore) AtomicUpdate(ctx context.Context, id string, mutate Mutator) (*Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[id]
	if !ok {
		return nil, access.Errf(access.ErrResourceNotFound, "resource %q not found", id)
	}

	updated := res.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	s.resources[id] = updated
	return updated.Clone(), nil
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)
