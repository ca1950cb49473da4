// Package schedule paces engagement actions against daily quotas.
//
// A Scheduler answers "may this action run right now" by consulting a
// quota.Tracker, invokes the caller-supplied executor when the answer is
// yes, and counts only successful executions against quota. Failed
// executions do not burn the daily allowance, and exhausted categories are
// skipped without touching the executor. Every decision produces an Attempt
// record so the activity trail is complete.
//
// Pacing is decoupled from suspension: NextDelay computes a randomized
// delay value and the host decides how to wait, whether with time.Sleep, a
// timer, or not at all for same-page action batches.
//
//	sched := schedule.New(tracker, 15*time.Second, 45*time.Second)
//	attempt, err := sched.Attempt(ctx, quota.CategoryLike, mediaID, executor)
//	if err != nil {
//	    // contract violation: unknown category or racing quota overrun
//	}
//	time.Sleep(sched.NextDelay())
package schedule
