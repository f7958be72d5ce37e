// Package inflight tracks work that is queued or running so the same
// recompute is never scheduled twice.
package inflight

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/vctrank/pkg/metrics"
)

// Tracker records in-flight keys.
type Tracker interface {
	// SeenAndRecord atomically checks whether key is in flight and records
	// it if not. It returns true when key was already in flight, along with
	// the time it was recorded. A full tracker reports a new key as seen
	// with a zero time.
	SeenAndRecord(ctx context.Context, key string) (since time.Time, seen bool)

	// Unrecord releases key once its work finished or could not be queued.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type memTracker struct {
	mu    sync.Mutex
	keys  map[string]time.Time
	size  atomic.Int64
	limit int
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*memTracker)

// WithLimit caps how many keys may be in flight. Non-positive means no cap.
func WithLimit(n int) Option {
	return func(t *memTracker) { t.limit = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *memTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New returns an in-memory Tracker.
func New(opts ...Option) Tracker {
	t := &memTracker{keys: make(map[string]time.Time), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SeenAndRecord implements Tracker.
func (t *memTracker) SeenAndRecord(_ context.Context, key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if at, ok := t.keys[key]; ok {
		return at, true
	}
	if t.limit > 0 && len(t.keys) >= t.limit {
		return time.Time{}, true
	}
	at := t.now()
	t.keys[key] = at
	metrics.UpdateRecomputeInflight(t.size.Add(1))
	return at, false
}

// Unrecord implements Tracker.
func (t *memTracker) Unrecord(_ context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[key]; ok {
		delete(t.keys, key)
		metrics.UpdateRecomputeInflight(t.size.Add(-1))
	}
}

// Size implements Tracker.
func (t *memTracker) Size() int64 { return t.size.Load() }
