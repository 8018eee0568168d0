package resourcez

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Store persists sessions by session name. Implementations never fail loudly:
// anything that cannot be loaded is reported as absent.
type Store interface {
	// Save records s as the session for name.
	Save(name string, s Session)

	// Load returns the session recorded for name, if any.
	Load(name string) (Session, bool)

	// Delete forgets the session recorded for name.
	Delete(name string)
}

// NoopStore persists nothing. Every manager attach starts without a session.
type NoopStore struct{}

// Save does nothing.
func (NoopStore) Save(string, Session) {}

// Load always reports absent.
func (NoopStore) Load(string) (Session, bool) { return Session{}, false }

// Delete does nothing.
func (NoopStore) Delete(string) {}

type memoryEntry struct {
	savedAt time.Time
	session Session
}

// MemoryStore keeps sessions in process memory, optionally expiring them.
// Safe for concurrent use.
type MemoryStore struct {
	sessions map[string]memoryEntry
	clock    clockz.Clock
	maxAge   time.Duration
	mu       sync.RWMutex
}

// NewMemoryStore creates an in-memory store. A zero maxAge keeps sessions
// until deleted.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		clock:    clockz.RealClock,
		maxAge:   maxAge,
	}
}

// WithClock sets the clock used for expiry. Enables deterministic testing.
func (m *MemoryStore) WithClock(clock clockz.Clock) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
	return m
}

// Save records s for name.
func (m *MemoryStore) Save(name string, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[name] = memoryEntry{session: s, savedAt: m.clock.Now()}
}

// Load returns the session for name unless it is missing or expired.
func (m *MemoryStore) Load(name string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[name]
	if !ok {
		return Session{}, false
	}
	if m.maxAge > 0 && m.clock.Since(entry.savedAt) >= m.maxAge {
		return Session{}, false
	}
	return entry.session, true
}

// Delete removes the session for name.
func (m *MemoryStore) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, name)
}

// Verify interface compliance.
var (
	_ Store = NoopStore{}
	_ Store = (*MemoryStore)(nil)
)
