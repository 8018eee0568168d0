package resourcez

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func waitForRenewal(t *testing.T, ch <-chan Session) Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("renewal did not happen")
		return Session{}
	}
}

func TestRenewerRenewsOnInterval(t *testing.T) {
	clock := clockz.NewFakeClock()
	provider := NewProvider(nil)
	m := NewManager("default", provider, NoopStore{})
	first := m.CreateSession()

	renewed := make(chan Session, 4)
	r := NewRenewer(m, time.Minute).WithClock(clock).OnRenew(func(s Session) { renewed <- s })
	r.Start()
	defer r.Stop()

	clock.Advance(time.Minute + time.Millisecond)
	clock.BlockUntilReady()
	second := waitForRenewal(t, renewed)
	assert.NotEqual(t, first.ID(), second.ID())

	v, _ := provider.Resource().Get("session.default.id")
	assert.Equal(t, second.ID(), v)

	clock.Advance(time.Minute + time.Millisecond)
	clock.BlockUntilReady()
	third := waitForRenewal(t, renewed)
	assert.NotEqual(t, second.ID(), third.ID())
}

func TestRenewerDoesNotFireEarly(t *testing.T) {
	clock := clockz.NewFakeClock()
	m := NewManager("default", NewProvider(nil), NoopStore{})

	renewed := make(chan Session, 1)
	r := NewRenewer(m, time.Minute).WithClock(clock).OnRenew(func(s Session) { renewed <- s })
	r.Start()
	defer r.Stop()

	clock.Advance(30 * time.Second)
	clock.BlockUntilReady()
	select {
	case <-renewed:
		t.Fatal("renewed before interval elapsed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRenewerStopHaltsRenewal(t *testing.T) {
	clock := clockz.NewFakeClock()
	m := NewManager("default", NewProvider(nil), NoopStore{})
	s := m.CreateSession()

	renewed := make(chan Session, 1)
	r := NewRenewer(m, time.Minute).WithClock(clock).OnRenew(func(s Session) { renewed <- s })
	r.Start()
	r.Stop()
	r.Stop()

	clock.Advance(2 * time.Minute)
	clock.BlockUntilReady()
	select {
	case <-renewed:
		t.Fatal("renewed after Stop")
	case <-time.After(50 * time.Millisecond):
	}

	active, ok := m.Session()
	require.True(t, ok, "Stop leaves the active session alone")
	assert.Equal(t, s.ID(), active.ID())
}

func TestRenewerStartTwice(t *testing.T) {
	clock := clockz.NewFakeClock()
	m := NewManager("default", NewProvider(nil), NoopStore{})

	renewed := make(chan Session, 4)
	r := NewRenewer(m, time.Minute).WithClock(clock).OnRenew(func(s Session) { renewed <- s })
	r.Start()
	r.Start()
	defer r.Stop()

	clock.Advance(time.Minute + time.Millisecond)
	clock.BlockUntilReady()
	waitForRenewal(t, renewed)

	select {
	case <-renewed:
		t.Fatal("second Start armed a second loop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRenewerStopFromCallback(t *testing.T) {
	clock := clockz.NewFakeClock()
	m := NewManager("default", NewProvider(nil), NoopStore{})

	var r *Renewer
	stopped := make(chan Session, 1)
	r = NewRenewer(m, time.Minute).WithClock(clock).OnRenew(func(s Session) {
		r.Stop()
		stopped <- s
	})
	r.Start()

	clock.Advance(time.Minute + time.Millisecond)
	clock.BlockUntilReady()
	renewed := waitForRenewal(t, stopped)

	// The loop has exited: further ticks renew nothing.
	clock.Advance(2 * time.Minute)
	clock.BlockUntilReady()
	select {
	case <-stopped:
		t.Fatal("renewed after Stop from callback")
	case <-time.After(50 * time.Millisecond):
	}

	active, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, renewed.ID(), active.ID())

	r.Stop()
}

func TestRenewerRestartAfterStopFromCallback(t *testing.T) {
	clock := clockz.NewFakeClock()
	m := NewManager("default", NewProvider(nil), NoopStore{})

	var r *Renewer
	count := 0
	renewed := make(chan Session, 4)
	r = NewRenewer(m, time.Minute).WithClock(clock).OnRenew(func(s Session) {
		count++
		if count == 2 {
			r.Stop()
		}
		renewed <- s
	})
	r.Start()

	for i := 0; i < 2; i++ {
		clock.Advance(time.Minute + time.Millisecond)
		clock.BlockUntilReady()
		waitForRenewal(t, renewed)
	}

	r.Start()
	defer r.Stop()
	clock.Advance(time.Minute + time.Millisecond)
	clock.BlockUntilReady()
	waitForRenewal(t, renewed)
}

func TestRenewerDefaultInterval(t *testing.T) {
	m := NewManager("default", NewProvider(nil), NoopStore{})
	assert.Equal(t, DefaultRetention, NewRenewer(m, 0).Interval())
}

func TestTimedManager(t *testing.T) {
	clock := clockz.NewFakeClock()
	jar := newTestClientJar(t)
	provider := NewProvider(nil)

	tm := NewTimedManager("default", provider, jar, time.Minute)
	first := tm.CreateSession()

	renewed := make(chan Session, 1)
	tm.Renewer().WithClock(clock).OnRenew(func(s Session) { renewed <- s })
	tm.Start()
	defer tm.Stop()

	clock.Advance(time.Minute + time.Millisecond)
	clock.BlockUntilReady()
	second := waitForRenewal(t, renewed)
	assert.NotEqual(t, first.ID(), second.ID())

	stored, ok := NewCookieStore(jar).Load("default")
	require.True(t, ok)
	assert.Equal(t, second.ID(), stored.ID(), "renewed session is persisted")
	assert.Equal(t, time.Minute, tm.Renewer().Interval())
}
