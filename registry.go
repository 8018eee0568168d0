package resourcez

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

// ErrDuplicateSession is returned when a session name is registered twice.
var ErrDuplicateSession = errors.New("session name already registered")

// Registry owns one Manager per session name over a shared Provider.
// Safe for concurrent use.
type Registry struct {
	provider *Provider
	managers map[string]*Manager
	mu       sync.RWMutex
}

// NewRegistry creates a registry projecting into provider. A nil provider
// uses DefaultProvider.
func NewRegistry(provider *Provider) *Registry {
	if provider == nil {
		provider = DefaultProvider()
	}
	return &Registry{
		provider: provider,
		managers: make(map[string]*Manager),
	}
}

// Provider returns the shared provider.
func (r *Registry) Provider() *Provider {
	return r.provider
}

// Register creates a manager for name over store. Any session the store holds
// for name is restored immediately.
func (r *Registry) Register(name string, store Store, opts ...Option) (*Manager, error) {
	if name == "" {
		name = DefaultSessionName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.managers[name]; exists {
		return nil, ErrDuplicateSession
	}
	m := NewManager(name, r.provider, store, opts...)
	r.managers[name] = m
	return m, nil
}

// Get returns the manager for name.
func (r *Registry) Get(name string) (*Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[name]
	return m, ok
}

// Names returns the registered session names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.managers))
}

// CreateAll starts a new session on every manager.
func (r *Registry) CreateAll() {
	for _, m := range r.snapshot() {
		m.CreateSession()
	}
}

// EndAll ends the session on every manager.
func (r *Registry) EndAll() {
	for _, m := range r.snapshot() {
		m.EndSession()
	}
}

func (r *Registry) snapshot() []*Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Manager, 0, len(r.managers))
	for _, name := range slices.Sorted(maps.Keys(r.managers)) {
		out = append(out, r.managers[name])
	}
	return out
}
