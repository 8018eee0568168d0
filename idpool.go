package resourcez

import (
	"sync"
)

// IDPool keeps a buffer of pre-generated session ids so CreateSession does
// not pay for id generation on the caller's path. The refill goroutine starts
// on the first Next call.
type IDPool struct {
	gen     IDGenerator
	ids     chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewIDPool creates a pool buffering up to capacity ids from gen. gen is
// called from the refill goroutine and from Next, so it must be safe for
// concurrent use. A nil gen uses RandomID.
func NewIDPool(capacity int, gen IDGenerator) *IDPool {
	if gen == nil {
		gen = RandomID
	}
	if capacity < 1 {
		capacity = 1
	}
	return &IDPool{
		gen:    gen,
		ids:    make(chan string, capacity),
		stopCh: make(chan struct{}),
	}
}

// Next returns a buffered id, or a freshly generated one when the buffer is
// empty or the pool is closed. Next satisfies IDGenerator.
func (p *IDPool) Next() string {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.gen()
	}
	if !p.started {
		p.started = true
		p.wg.Add(1)
		go p.refill()
	}
	p.mu.Unlock()

	select {
	case id := <-p.ids:
		return id
	default:
		// Buffer drained, generate inline.
		return p.gen()
	}
}

func (p *IDPool) refill() {
	defer p.wg.Done()
	for {
		id := p.gen()
		select {
		case p.ids <- id:
		case <-p.stopCh:
			return
		}
	}
}

// Close stops the refill goroutine and waits for it. Safe to call repeatedly.
func (p *IDPool) Close() {
	p.mu.Lock()
	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
	p.mu.Unlock()
	p.wg.Wait()
}
