package schedule

import (
	"context"
	"math/rand"
	"time"

	"igengage/pkg/logger"
	"igengage/pkg/quota"
)

// Outcome classifies the result of an engagement attempt.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFailure      Outcome = "failure"
	OutcomeSkippedQuota Outcome = "skipped_quota"
)

// Attempt is the decision-and-outcome record produced for every call to
// Scheduler.Attempt, including quota skips. It is the unit consumed by the
// reporting layer.
type Attempt struct {
	Category  quota.Category `json:"category"`
	Target    string         `json:"target"`
	Outcome   Outcome        `json:"outcome"`
	Err       error          `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
}

// Executor performs the real-world side effect of an engagement action, such
// as driving a browser or calling the platform API. It is opaque to the
// scheduler: possibly slow, possibly failing, never retried here.
type Executor interface {
	Execute(ctx context.Context, category quota.Category, target string) error
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, category quota.Category, target string) error

func (f ExecutorFunc) Execute(ctx context.Context, category quota.Category, target string) error {
	return f(ctx, category, target)
}

// Scheduler gates engagement actions behind a quota tracker and computes
// randomized pacing delays. It never sleeps itself: Attempt decides and
// executes, NextDelay produces a value, and the caller chooses how to
// suspend.
type Scheduler struct {
	tracker  *quota.Tracker
	minDelay time.Duration
	maxDelay time.Duration
	fixed    time.Duration
	rng      *rand.Rand
	now      func() time.Time
	logger   logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithFixedDelay adds a fixed per-action delay on top of the random range.
func WithFixedDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		s.fixed = d
	}
}

// WithRand overrides the randomness source. Intended for tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithLogger sets the logger used for attempt tracing.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		s.logger = log
	}
}

// New creates a Scheduler over the given tracker with delays drawn uniformly
// from [minDelay, maxDelay].
func New(tracker *quota.Tracker, minDelay, maxDelay time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		tracker:  tracker,
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	return s
}

// Tracker returns the scheduler's quota tracker.
func (s *Scheduler) Tracker() *quota.Tracker {
	return s.tracker
}

// Attempt decides whether an action may run, executes it via the supplied
// executor, and records successful actions against quota.
//
// Every call returns an Attempt record: quota skips produce skipped_quota
// without invoking the executor, executor errors produce failure without
// consuming quota, and successes are counted. The error return is reserved
// for contract violations (unknown category, or a quota ceiling hit between
// check and record under racing callers); executor failure is a normal
// outcome, not an error.
func (s *Scheduler) Attempt(ctx context.Context, category quota.Category, target string, exec Executor) (Attempt, error) {
	attempt := Attempt{
		Category:  category,
		Target:    target,
		Timestamp: s.now(),
	}

	ok, err := s.tracker.CanPerform(category)
	if err != nil {
		return attempt, err
	}
	if !ok {
		attempt.Outcome = OutcomeSkippedQuota
		s.logger.DebugWithFields("attempt skipped by quota", map[string]interface{}{
			"category": string(category),
			"target":   target,
		})
		return attempt, nil
	}

	// The executor runs outside any lock the tracker holds and may block on
	// network or UI latency.
	if execErr := exec.Execute(ctx, category, target); execErr != nil {
		attempt.Outcome = OutcomeFailure
		attempt.Err = execErr
		s.logger.WarnWithFields("attempt failed", map[string]interface{}{
			"category": string(category),
			"target":   target,
			"error":    execErr.Error(),
		})
		return attempt, nil
	}

	if err := s.tracker.Record(category); err != nil {
		// Lost a race with another caller for the last slot. The action
		// already ran; surface the overrun instead of under-counting it.
		attempt.Outcome = OutcomeSuccess
		return attempt, err
	}

	attempt.Outcome = OutcomeSuccess
	s.logger.DebugWithFields("attempt succeeded", map[string]interface{}{
		"category": string(category),
		"target":   target,
	})
	return attempt, nil
}

// NextDelay returns the pause the caller should observe before the next
// attempt: a duration drawn uniformly from [min, max] inclusive, plus the
// optional fixed per-action delay. It returns instantly and never sleeps;
// the suspension mechanism is the caller's choice.
func (s *Scheduler) NextDelay() time.Duration {
	d := s.minDelay
	if span := s.maxDelay - s.minDelay; span > 0 {
		d += time.Duration(s.rng.Int63n(int64(span) + 1))
	}
	return d + s.fixed
}
