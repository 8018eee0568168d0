package resourcez

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
)

// DefaultRetention is the renewal interval used when none is given.
const DefaultRetention = 15 * time.Second

// Renewer renews a Manager's session on a fixed interval. It wraps the
// manager rather than extending it, so the renewal policy can be swapped or
// left out entirely.
//
//nolint:govet // Field order optimized for readability over memory
type Renewer struct {
	manager  *Manager
	clock    clockz.Clock
	logger   zerolog.Logger
	onRenew  func(Session)
	run      *renewRun
	interval time.Duration
	mu       sync.Mutex
	running  bool
}

// NewRenewer creates a renewer for manager. A non-positive interval uses
// DefaultRetention.
func NewRenewer(manager *Manager, interval time.Duration) *Renewer {
	if interval <= 0 {
		interval = DefaultRetention
	}
	return &Renewer{
		manager:  manager,
		clock:    clockz.RealClock,
		logger:   manager.logger,
		interval: interval,
	}
}

// WithClock sets the clock driving renewals. Must be called before Start.
func (r *Renewer) WithClock(clock clockz.Clock) *Renewer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

// OnRenew registers fn to be called with each new session. Must be called
// before Start.
func (r *Renewer) OnRenew(fn func(Session)) *Renewer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRenew = fn
	return r
}

// Interval returns the renewal interval.
func (r *Renewer) Interval() time.Duration {
	return r.interval
}

// Start begins renewing. The first renewal happens one interval from now.
// Calling Start on a running renewer does nothing.
func (r *Renewer) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.run = &renewRun{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	// Arm the first timer before returning so a fake clock advanced right
	// after Start fires it.
	next := r.clock.After(r.interval)
	go r.loop(next, r.run, r.onRenew)
}

// renewRun is the state of one Start..Stop cycle.
type renewRun struct {
	stop       chan struct{}
	done       chan struct{}
	inCallback atomic.Bool
}

func (r *Renewer) loop(next <-chan time.Time, run *renewRun, onRenew func(Session)) {
	defer close(run.done)
	for {
		select {
		case <-run.stop:
			return
		case <-next:
			// Stop wins over a tick that became ready at the same time.
			select {
			case <-run.stop:
				return
			default:
			}
			next = r.clock.After(r.interval)
			s := r.manager.Renew()
			r.logger.Debug().Str("session", r.manager.Name()).Str("session_id", s.ID()).Msg("session renewed")
			if onRenew != nil {
				run.inCallback.Store(true)
				onRenew(s)
				run.inCallback.Store(false)
			}
		}
	}
}

// Stop halts renewal and waits for any in-flight renewal to finish. The
// active session is left in place. Safe to call repeatedly, including from
// an OnRenew callback; while a callback is running Stop returns without
// waiting for it.
func (r *Renewer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	run := r.run
	close(run.stop)
	r.mu.Unlock()

	if run.inCallback.Load() {
		return
	}
	<-run.done
}

// TimedManager is a Manager over a cookie store whose sessions are renewed
// every retention window.
type TimedManager struct {
	*Manager
	renewer *Renewer
}

// NewTimedManager creates a cookie-backed manager with Max-Age set to
// retention and a renewer firing at the same interval. Call Start to begin
// renewing.
func NewTimedManager(name string, provider *Provider, jar CookieJar, retention time.Duration, opts ...Option) *TimedManager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	store := NewCookieStore(jar).WithMaxAge(retention)
	manager := NewManager(name, provider, store, opts...)
	return &TimedManager{
		Manager: manager,
		renewer: NewRenewer(manager, retention),
	}
}

// Renewer returns the renewer driving this manager.
func (t *TimedManager) Renewer() *Renewer {
	return t.renewer
}

// Start begins periodic renewal.
func (t *TimedManager) Start() {
	t.renewer.Start()
}

// Stop halts periodic renewal.
func (t *TimedManager) Stop() {
	t.renewer.Stop()
}
