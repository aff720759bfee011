package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds the in-memory storefront sessions keyed by cookie id.
// Sessions idle longer than the TTL are closed and evicted.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts its eviction loop.
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	r := newRegistry(ttl, time.Now, logger)
	go r.cleanupLoop(evictionInterval(ttl))
	return r
}

func newRegistry(ttl time.Duration, now func() time.Time, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

func evictionInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

// Resolve returns the live session for id, or creates a fresh one when id is
// empty, unknown or expired. created reports which happened.
func (r *Registry) Resolve(id string) (s *Session, created bool) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		if now.Sub(s.idleSince()) <= r.ttl {
			s.touch(now)
			return s, false
		}
		r.evictLocked(id, s)
	}

	s = NewSession(uuid.NewString(), now)
	r.sessions[s.id] = s
	activeSessions.Inc()
	return s, true
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict closes and removes the session with id.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		r.evictLocked(id, s)
	}
}

func (r *Registry) evictLocked(id string, s *Session) {
	delete(r.sessions, id)
	s.Close()
	activeSessions.Dec()
}

// evictIdle removes sessions whose last activity is older than the TTL.
func (r *Registry) evictIdle() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) > r.ttl {
			r.evictLocked(id, s)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if n := r.evictIdle(); n > 0 {
				r.logger.Debug("evicted idle sessions", slog.Int("count", n))
			}
		}
	}
}

// Close stops the eviction loop and closes every session.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		r.evictLocked(id, s)
	}
}
