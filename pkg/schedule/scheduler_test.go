package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"igengage/pkg/errors"
	"igengage/pkg/logger"
	"igengage/pkg/quota"
)

// spyExecutor counts invocations and fails on demand
type spyExecutor struct {
	calls int
	err   error
}

func (s *spyExecutor) Execute(ctx context.Context, category quota.Category, target string) error {
	s.calls++
	return s.err
}

func newScheduler(limits quota.Limits, min, max time.Duration) *Scheduler {
	tracker := quota.NewTracker(limits)
	return New(tracker, min, max, WithLogger(logger.NewNopLogger()))
}

func TestAttemptSuccessConsumesQuota(t *testing.T) {
	sched := newScheduler(quota.Limits{quota.CategoryLike: 2}, 0, 0)
	exec := &spyExecutor{}

	attempt, err := sched.Attempt(context.Background(), quota.CategoryLike, "post1", exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt.Outcome != OutcomeSuccess {
		t.Errorf("expected success outcome, got %s", attempt.Outcome)
	}
	if exec.calls != 1 {
		t.Errorf("expected executor to run once, ran %d times", exec.calls)
	}
	if got := sched.Tracker().Counts()[quota.CategoryLike]; got != 1 {
		t.Errorf("expected count 1 after success, got %d", got)
	}
}

func TestAttemptSkipsWhenExhausted(t *testing.T) {
	sched := newScheduler(quota.Limits{quota.CategoryFollow: 0}, 0, 0)
	exec := &spyExecutor{}

	attempt, err := sched.Attempt(context.Background(), quota.CategoryFollow, "user1", exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt.Outcome != OutcomeSkippedQuota {
		t.Errorf("expected skipped_quota outcome, got %s", attempt.Outcome)
	}
	if exec.calls != 0 {
		t.Errorf("expected executor not to run, ran %d times", exec.calls)
	}
}

func TestAttemptFailureDoesNotConsumeQuota(t *testing.T) {
	sched := newScheduler(quota.Limits{quota.CategoryComment: 5}, 0, 0)
	exec := &spyExecutor{err: fmt.Errorf("element not found")}

	attempt, err := sched.Attempt(context.Background(), quota.CategoryComment, "post9", exec)
	if err != nil {
		t.Fatalf("executor failure must not be an error, got %v", err)
	}
	if attempt.Outcome != OutcomeFailure {
		t.Errorf("expected failure outcome, got %s", attempt.Outcome)
	}
	if attempt.Err == nil {
		t.Error("expected attempt to carry the executor error")
	}
	if exec.calls != 1 {
		t.Errorf("expected one executor call, got %d", exec.calls)
	}
	if got := sched.Tracker().Counts()[quota.CategoryComment]; got != 0 {
		t.Errorf("expected failed attempt to leave count at 0, got %d", got)
	}
}

func TestAttemptUnknownCategory(t *testing.T) {
	sched := newScheduler(quota.Limits{quota.CategoryLike: 1}, 0, 0)
	exec := &spyExecutor{}

	_, err := sched.Attempt(context.Background(), quota.Category("bookmark"), "post1", exec)
	if !errors.IsUnknownCategory(err) {
		t.Errorf("expected unknown_category error, got %v", err)
	}
	if exec.calls != 0 {
		t.Error("expected executor not to run for unknown category")
	}
}

func TestEndToEndLimitSequence(t *testing.T) {
	sched := newScheduler(quota.Limits{quota.CategoryLike: 2}, 0, 0)
	exec := &spyExecutor{}

	want := []Outcome{OutcomeSuccess, OutcomeSuccess, OutcomeSkippedQuota}
	for i, expected := range want {
		attempt, err := sched.Attempt(context.Background(), quota.CategoryLike, fmt.Sprintf("post%d", i), exec)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if attempt.Outcome != expected {
			t.Errorf("attempt %d: expected %s, got %s", i, expected, attempt.Outcome)
		}
	}

	if exec.calls != 2 {
		t.Errorf("expected exactly 2 executor calls, got %d", exec.calls)
	}
	if got := sched.Tracker().Counts()[quota.CategoryLike]; got != 2 {
		t.Errorf("expected final count 2, got %d", got)
	}
}

func TestCountsNeverExceedLimits(t *testing.T) {
	limits := quota.Limits{
		quota.CategoryLike:    3,
		quota.CategoryFollow:  1,
		quota.CategoryComment: 0,
	}
	sched := newScheduler(limits, 0, 0)
	failing := &spyExecutor{err: fmt.Errorf("flaky")}
	succeeding := &spyExecutor{}

	categories := []quota.Category{quota.CategoryLike, quota.CategoryFollow, quota.CategoryComment}
	for i := 0; i < 20; i++ {
		c := categories[i%len(categories)]
		exec := Executor(succeeding)
		if i%4 == 0 {
			exec = failing
		}
		if _, err := sched.Attempt(context.Background(), c, fmt.Sprintf("t%d", i), exec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	counts := sched.Tracker().Counts()
	for c, limit := range limits {
		if counts[c] > limit {
			t.Errorf("category %s exceeded limit: %d > %d", c, counts[c], limit)
		}
	}
}

func TestNextDelayWithinBounds(t *testing.T) {
	min := 2 * time.Second
	max := 7 * time.Second
	sched := New(quota.NewTracker(quota.Limits{}), min, max,
		WithRand(rand.New(rand.NewSource(42))),
		WithLogger(logger.NewNopLogger()))

	for i := 0; i < 1000; i++ {
		d := sched.NextDelay()
		if d < min || d > max {
			t.Fatalf("delay %v outside [%v, %v]", d, min, max)
		}
	}
}

func TestNextDelayDegenerateRange(t *testing.T) {
	sched := New(quota.NewTracker(quota.Limits{}), 3*time.Second, 3*time.Second,
		WithLogger(logger.NewNopLogger()))

	for i := 0; i < 1000; i++ {
		if d := sched.NextDelay(); d != 3*time.Second {
			t.Fatalf("expected exactly 3s with min==max, got %v", d)
		}
	}
}

func TestNextDelayIncludesFixedDelay(t *testing.T) {
	sched := New(quota.NewTracker(quota.Limits{}), time.Second, time.Second,
		WithFixedDelay(500*time.Millisecond),
		WithLogger(logger.NewNopLogger()))

	if d := sched.NextDelay(); d != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", d)
	}
}

func TestExecutorFunc(t *testing.T) {
	called := false
	exec := ExecutorFunc(func(ctx context.Context, category quota.Category, target string) error {
		called = true
		return nil
	})

	sched := newScheduler(quota.Limits{quota.CategoryLike: 1}, 0, 0)
	if _, err := sched.Attempt(context.Background(), quota.CategoryLike, "p", exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected func executor to be invoked")
	}
}
