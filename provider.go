package resourcez

import (
	"sync"
	"sync/atomic"
)

// UpdateHandler is called after the provider's resource changes.
type UpdateHandler func(previous, current *Resource)

type handlerEntry struct {
	handler UpdateHandler
	id      uint64
}

// Provider holds the current Resource for a process. It is the single
// mutation point for resource attributes. Safe for concurrent use.
//
//nolint:govet // Field order optimized for readability over memory
type Provider struct {
	current      atomic.Pointer[Resource]
	handlers     []handlerEntry
	panicHook    func(handlerID uint64, r interface{})
	handlersLock sync.RWMutex
	nextID       atomic.Uint64
}

// NewProvider creates a provider holding Default merged with r.
// A nil r is treated as Empty, so baseline attributes are always present.
func NewProvider(r *Resource) *Provider {
	if r == nil {
		r = Empty()
	}
	p := &Provider{}
	p.current.Store(Default().Merge(r))
	return p
}

var (
	defaultProvider     *Provider
	defaultProviderOnce sync.Once
)

// DefaultProvider returns the process-wide provider, seeded from Default and
// the OTEL_* environment. Prefer passing explicit providers; this exists for
// top-level wiring.
func DefaultProvider() *Provider {
	defaultProviderOnce.Do(func() {
		defaultProvider = NewProvider(FromEnv())
	})
	return defaultProvider
}

// Resource returns the current snapshot. Never nil; a zero Provider holds
// Default.
func (p *Provider) Resource() *Resource {
	return p.load()
}

func (p *Provider) load() *Resource {
	if r := p.current.Load(); r != nil {
		return r
	}
	p.current.CompareAndSwap(nil, Default())
	return p.current.Load()
}

// Update replaces the current resource. Last write wins; callers merge first.
func (p *Provider) Update(r *Resource) {
	if r == nil {
		r = Empty()
	}
	previous := p.current.Swap(r)
	if previous != r {
		p.executeHandlers(previous, r)
	}
}

// Modify applies fn to the current resource and swaps in the result,
// retrying if another writer got there first. fn must be free of side
// effects since it may run more than once. Returns the stored resource.
func (p *Provider) Modify(fn func(*Resource) *Resource) *Resource {
	for {
		previous := p.load()
		next := fn(previous)
		if next == nil {
			next = Empty()
		}
		if next == previous {
			return previous
		}
		if p.current.CompareAndSwap(previous, next) {
			p.executeHandlers(previous, next)
			return next
		}
	}
}

// OnUpdate registers a handler called synchronously after every change.
// Returns an id for RemoveHandler.
func (p *Provider) OnUpdate(handler UpdateHandler) uint64 {
	if handler == nil {
		return 0
	}

	id := p.nextID.Add(1)

	p.handlersLock.Lock()
	defer p.handlersLock.Unlock()

	p.handlers = append(p.handlers, handlerEntry{id: id, handler: handler})
	return id
}

// RemoveHandler removes a handler by ID.
func (p *Provider) RemoveHandler(id uint64) {
	p.handlersLock.Lock()
	defer p.handlersLock.Unlock()

	// Preserve order
	for i, h := range p.handlers {
		if h.id == id {
			copy(p.handlers[i:], p.handlers[i+1:])
			p.handlers = p.handlers[:len(p.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (p *Provider) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	p.handlersLock.Lock()
	defer p.handlersLock.Unlock()
	p.panicHook = hook
}

func (p *Provider) executeHandlers(previous, current *Resource) {
	p.handlersLock.RLock()
	if len(p.handlers) == 0 {
		p.handlersLock.RUnlock()
		return
	}
	handlers := make([]handlerEntry, len(p.handlers))
	copy(handlers, p.handlers)
	hook := p.panicHook
	p.handlersLock.RUnlock()

	for _, h := range handlers {
		safeCall(h, hook, previous, current)
	}
}

func safeCall(entry handlerEntry, hook func(uint64, interface{}), previous, current *Resource) {
	defer func() {
		if r := recover(); r != nil && hook != nil {
			hook(entry.id, r)
		}
	}()
	entry.handler(previous, current)
}
