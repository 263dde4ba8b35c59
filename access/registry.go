package access

import (
	"sync"
)

// Registry is the process-wide mapping of resource type names to action
// sets. It is populated during initialization and read-only thereafter;
// the lock only serializes startup registration.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*ActionSet
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*ActionSet),
	}
}

// Register adds a resource type. Registering an already-known name fails
// with ErrDuplicateType; the action graph never mutates at runtime.
func (r *Registry) Register(name string, set *ActionSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.types[name]; dup {
		return Errf(ErrDuplicateType, "resource type %q already registered", name)
	}
	r.types[name] = set
	return nil
}

// Lookup resolves a type name to its action set.
func (r *Registry) Lookup(name string) (*ActionSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.types[name]
	if !ok {
		return nil, Errf(ErrTypeNotFound, "resource type %q not registered", name)
	}
	return set, nil
}

// Has reports whether a type name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Types returns the registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}
