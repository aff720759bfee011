package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRegistry_ResolveCreatesAndReuses(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := newRegistry(time.Hour, clock.Now, newTestLogger())
	defer r.Close()

	s, created := r.Resolve("")
	require.True(t, created)
	assert.NotEmpty(t, s.ID())

	again, created := r.Resolve(s.ID())
	assert.False(t, created)
	assert.Same(t, s, again)

	other, created := r.Resolve("unknown-id")
	assert.True(t, created)
	assert.NotEqual(t, s.ID(), other.ID())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ExpiredSessionIsReplaced(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := newRegistry(30*time.Minute, clock.Now, newTestLogger())
	defer r.Close()

	s, _ := r.Resolve("")
	clock.Advance(31 * time.Minute)

	fresh, created := r.Resolve(s.ID())

	assert.True(t, created)
	assert.NotEqual(t, s.ID(), fresh.ID())
	assert.True(t, s.Closed(), "expired session is closed")
	assert.Equal(t, 1, r.Len(), "expired session is replaced, not kept")
}

func TestRegistry_EvictIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := newRegistry(10*time.Minute, clock.Now, newTestLogger())
	defer r.Close()

	idle, _ := r.Resolve("")
	clock.Advance(6 * time.Minute)
	busy, _ := r.Resolve("")
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, r.evictIdle())
	assert.True(t, idle.Closed())
	assert.False(t, busy.Closed())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ActivityExtendsLifetime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := newRegistry(10*time.Minute, clock.Now, newTestLogger())
	defer r.Close()

	s, _ := r.Resolve("")
	for range 3 {
		clock.Advance(8 * time.Minute)
		_, created := r.Resolve(s.ID())
		require.False(t, created)
	}
	assert.Zero(t, r.evictIdle())
}

func TestRegistry_CloseClosesSessions(t *testing.T) {
	r := newRegistry(time.Hour, time.Now, newTestLogger())
	a, _ := r.Resolve("")
	b, _ := r.Resolve("")

	r.Close()
	r.Close()

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Zero(t, r.Len())
}

func TestRegistry_Evict(t *testing.T) {
	r := newRegistry(time.Hour, time.Now, newTestLogger())
	defer r.Close()
	s, _ := r.Resolve("")

	r.Evict(s.ID())
	r.Evict("missing")

	assert.True(t, s.Closed())
	assert.Zero(t, r.Len())
}

func TestEvictionInterval(t *testing.T) {
	assert.Equal(t, time.Second, evictionInterval(time.Second))
	assert.Equal(t, 30*time.Second, evictionInterval(2*time.Minute))
	assert.Equal(t, time.Minute, evictionInterval(2*time.Hour))
}
