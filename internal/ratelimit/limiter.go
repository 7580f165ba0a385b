// Package ratelimit is a fixed-window attempt limiter whose counters
// survive restarts in a small JSON file.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/difyz9/fail2ban-web/internal/fsatomic"
)

type state struct {
	Version int               `json:"version"`
	Buckets map[string]bucket `json:"buckets"`
}

type bucket struct {
	Hits  int       `json:"hits"`
	Start time.Time `json:"start"`
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long to wait before the window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type Limiter struct {
	path   string
	limit  int
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	buckets     map[string]bucket
	dirty       int
	lastPersist time.Time
}

// New allows limit hits per key within each window. An empty path keeps
// the counters in memory only.
func New(path string, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	l := &Limiter{
		path:    path,
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: map[string]bucket{},
	}
	if path != "" {
		var st state
		if ok, err := fsatomic.LoadJSON(path, &st); err == nil && ok && st.Buckets != nil {
			l.buckets = st.Buckets
		}
	}
	l.lastPersist = l.now()
	return l
}

// Allow counts one attempt for key.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	b := l.buckets[key]
	if b.Start.IsZero() || now.Sub(b.Start) >= l.window {
		b = bucket{Start: now}
	}
	res := Result{ResetAt: b.Start.Add(l.window)}
	if b.Hits >= l.limit {
		return res
	}
	b.Hits++
	l.buckets[key] = b
	res.Allowed = true
	res.Remaining = l.limit - b.Hits
	l.maybePersistLocked()
	return res
}

// Reset forgets key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets[key]; ok {
		delete(l.buckets, key)
		l.maybePersistLocked()
	}
}

// Flush writes the counters now, dropping windows that have ended.
func (l *Limiter) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

func (l *Limiter) persistLocked(ctx context.Context) error {
	if l.path == "" {
		return nil
	}
	now := l.now().UTC()
	for k, b := range l.buckets {
		if now.Sub(b.Start) >= l.window {
			delete(l.buckets, k)
		}
	}
	st := state{Version: 1, Buckets: l.buckets}
	if err := fsatomic.WithLock(l.path, func() error {
		return fsatomic.SaveJSON(ctx, l.path, st, 0o600)
	}); err != nil {
		return err
	}
	l.lastPersist = l.now()
	l.dirty = 0
	return nil
}

// maybePersistLocked writes every 10 changes or every 2s.
func (l *Limiter) maybePersistLocked() {
	l.dirty++
	if l.dirty%10 == 0 || l.now().Sub(l.lastPersist) >= 2*time.Second {
		_ = l.persistLocked(context.Background())
	}
}
