package quota

import (
	"sync"
	"time"

	"igengage/pkg/errors"
)

// Category is a kind of engagement action, each with its own independent quota.
type Category string

const (
	CategoryLike     Category = "like"
	CategoryFollow   Category = "follow"
	CategoryUnfollow Category = "unfollow"
	CategoryComment  Category = "comment"
)

// DefaultWindow is the rolling period over which ceilings apply before counters reset.
const DefaultWindow = 24 * time.Hour

// Limits maps each category to its maximum permitted count per window.
type Limits map[Category]int

// State is a serializable snapshot of a tracker, used for cross-run persistence.
type State struct {
	Counts      map[Category]int `json:"counts"`
	WindowStart time.Time        `json:"window_start"`
}

// Tracker counts performed actions per category against fixed ceilings and
// resets the counters when the counting window elapses.
//
// Each method is safe for concurrent use on its own, but the
// CanPerform+Record pair is not atomic: callers sharing a Tracker across
// goroutines must serialize the pair with their own lock, or a racing caller
// may find its Record rejected with a quota_exceeded error. Record never
// increments past the ceiling regardless.
type Tracker struct {
	mu          sync.Mutex
	counts      map[Category]int
	limits      map[Category]int
	windowStart time.Time
	window      time.Duration
	now         func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow overrides the default 24h counting window.
func WithWindow(window time.Duration) Option {
	return func(t *Tracker) {
		t.window = window
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker for the given per-category limits. The limits
// are copied and immutable for the tracker's lifetime.
func NewTracker(limits Limits, opts ...Option) *Tracker {
	t := &Tracker{
		counts: make(map[Category]int, len(limits)),
		limits: make(map[Category]int, len(limits)),
		window: DefaultWindow,
		now:    time.Now,
	}
	for c, l := range limits {
		t.limits[c] = l
		t.counts[c] = 0
	}
	for _, opt := range opts {
		opt(t)
	}
	t.windowStart = t.now()
	return t
}

// CanPerform reports whether an action of the given category is still within
// its ceiling for the current window. It triggers a window-rollover check but
// has no other side effects.
func (t *Tracker) CanPerform(category Category) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit, ok := t.limits[category]
	if !ok {
		return false, errors.New(errors.ErrorTypeUnknownCategory, "category %q is not configured", category)
	}

	t.rollover()

	return t.counts[category] < limit, nil
}

// Record counts one performed action of the given category. It fails with a
// quota_exceeded error if the category is already at its ceiling; the count
// is never incremented past the limit.
func (t *Tracker) Record(category Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit, ok := t.limits[category]
	if !ok {
		return errors.New(errors.ErrorTypeUnknownCategory, "category %q is not configured", category)
	}

	t.rollover()

	if t.counts[category] >= limit {
		return errors.New(errors.ErrorTypeQuotaExceeded, "category %q is at its limit of %d for the current window", category, limit)
	}

	t.counts[category]++
	return nil
}

// Remaining returns how many actions of the given category are still
// permitted in the current window.
func (t *Tracker) Remaining(category Category) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit, ok := t.limits[category]
	if !ok {
		return 0, errors.New(errors.ErrorTypeUnknownCategory, "category %q is not configured", category)
	}

	t.rollover()

	remaining := limit - t.counts[category]
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Limit returns the configured ceiling for a category.
func (t *Tracker) Limit(category Category) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit, ok := t.limits[category]
	if !ok {
		return 0, errors.New(errors.ErrorTypeUnknownCategory, "category %q is not configured", category)
	}
	return limit, nil
}

// Counts returns a copy of the current per-category counts.
func (t *Tracker) Counts() map[Category]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	counts := make(map[Category]int, len(t.counts))
	for c, n := range t.counts {
		counts[c] = n
	}
	return counts
}

// State returns a snapshot of the tracker for persistence.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	counts := make(map[Category]int, len(t.counts))
	for c, n := range t.counts {
		counts[c] = n
	}
	return State{Counts: counts, WindowStart: t.windowStart}
}

// Restore loads a previously saved snapshot. Counts for categories absent
// from the tracker's limits are dropped; restored counts are clamped to the
// configured ceilings so a snapshot can never push a category past its limit.
func (t *Tracker) Restore(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state.WindowStart.IsZero() {
		return
	}

	t.windowStart = state.WindowStart
	for c := range t.counts {
		t.counts[c] = 0
	}
	for c, n := range state.Counts {
		limit, ok := t.limits[c]
		if !ok {
			continue
		}
		if n > limit {
			n = limit
		}
		if n < 0 {
			n = 0
		}
		t.counts[c] = n
	}

	t.rollover()
}

// rollover zeroes all counters and restarts the window once the window length
// has elapsed. Negative elapsed time (clock adjusted backwards) never
// triggers a reset and never moves the window start backwards. Callers must
// hold t.mu.
func (t *Tracker) rollover() {
	now := t.now()
	if now.Sub(t.windowStart) < t.window {
		return
	}
	for c := range t.counts {
		t.counts[c] = 0
	}
	t.windowStart = now
}
