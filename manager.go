package resourcez

import (
	"sync"

	"github.com/rs/zerolog"
)

// Option configures a Manager.
type Option func(*Manager)

// WithGenerator sets the id generator used by CreateSession.
func WithGenerator(gen IDGenerator) Option {
	return func(m *Manager) {
		if gen != nil {
			m.generator = gen
		}
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDeleteOnEnd makes EndSession also delete the stored session, so a
// later manager for the same name starts without one.
func WithDeleteOnEnd() Option {
	return func(m *Manager) {
		m.deleteOnEnd = true
	}
}

// Manager runs the session lifecycle for one session name. While a session
// is active the provider's resource carries session.<name>.id; otherwise the
// manager keeps that key out of it.
//
// Operations on one Manager are serialized. Managers for different names may
// share a Provider. Managers for the same name must not: the provider reflects
// whichever finished last.
//
//nolint:govet // Field order optimized for readability over memory
type Manager struct {
	provider    *Provider
	store       Store
	generator   IDGenerator
	logger      zerolog.Logger
	name        string
	key         string
	active      Session
	mu          sync.Mutex
	hasActive   bool
	deleteOnEnd bool
}

// NewManager creates a manager for name and restores any session the store
// holds for it. An empty name uses DefaultSessionName, a nil provider uses
// DefaultProvider, and a nil store uses NoopStore.
func NewManager(name string, provider *Provider, store Store, opts ...Option) *Manager {
	if name == "" {
		name = DefaultSessionName
	}
	if provider == nil {
		provider = DefaultProvider()
	}
	if store == nil {
		store = NoopStore{}
	}

	m := &Manager{
		provider:  provider,
		store:     store,
		generator: RandomID,
		logger:    zerolog.Nop(),
		name:      name,
		key:       SessionKey(name),
	}
	for _, opt := range opts {
		opt(m)
	}

	if s, ok := store.Load(name); ok && !s.IsZero() {
		m.active = s
		m.hasActive = true
		m.project(s)
		m.logger.Debug().Str("session", name).Str("session_id", s.ID()).Msg("session restored")
	}
	return m
}

// Name returns the session name.
func (m *Manager) Name() string {
	return m.name
}

// Key returns the attribute key this manager owns.
func (m *Manager) Key() string {
	return m.key
}

// Provider returns the provider this manager projects into.
func (m *Manager) Provider() *Provider {
	return m.provider
}

// CreateSession ends any active session and starts a new one, persisting it
// and projecting it into the provider.
func (m *Manager) CreateSession() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked()
}

// EndSession removes the session attribute from the provider. Idempotent.
// The stored session is left in place unless WithDeleteOnEnd was given.
func (m *Manager) EndSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
}

// Renew ends the active session and creates a new one in a single step.
func (m *Manager) Renew() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked()
}

// HasActiveSession reports whether a session is active.
func (m *Manager) HasActiveSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasActive
}

// Session returns the active session.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.hasActive
}

func (m *Manager) createLocked() Session {
	m.endLocked()

	s := NewSession(m.generator)
	m.active = s
	m.hasActive = true
	m.store.Save(m.name, s)
	m.project(s)

	m.logger.Debug().Str("session", m.name).Str("session_id", s.ID()).Msg("session created")
	return s
}

func (m *Manager) endLocked() {
	m.provider.Modify(func(r *Resource) *Resource {
		return r.Without(m.key)
	})
	if m.hasActive {
		m.logger.Debug().Str("session", m.name).Str("session_id", m.active.ID()).Msg("session ended")
		if m.deleteOnEnd {
			m.store.Delete(m.name)
		}
	}
	m.active = Session{}
	m.hasActive = false
}

// project merges the session attribute into the provider's current resource.
func (m *Manager) project(s Session) {
	fragment := s.Resource(m.name)
	m.provider.Modify(func(r *Resource) *Resource {
		return r.Merge(fragment)
	})
}
