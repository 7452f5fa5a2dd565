package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps backend names to the factories that build them. Adapter
// packages add themselves to DefaultRegistry from their init functions,
// so importing an adapter is all it takes to make its backend available.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StorageFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StorageFactory)}
}

// Register adds or replaces the factory for a backend name.
func (r *Registry) Register(name string, factory StorageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds a storage backend by name.
func (r *Registry) Create(name string, config StorageConfig) (Storage, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("storage type %q is not registered", name)
	}

	return factory.Create(config)
}

// GetAvailableTypes lists the registered backend names in sorted order.
func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a factory exists for the given backend name.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// DefaultRegistry holds the backends compiled into this binary.
var DefaultRegistry = NewRegistry()

func Register(name string, factory StorageFactory) {
	DefaultRegistry.Register(name, factory)
}

func Create(name string, config StorageConfig) (Storage, error) {
	return DefaultRegistry.Create(name, config)
}
