// Package quota tracks engagement actions against per-category daily ceilings.
//
// A Tracker counts likes, follows, unfollows and comments performed during a
// rolling window (24 hours by default) and refuses to count past the
// configured limit for each category. When the window elapses all counters
// reset to zero and a new window begins.
//
// Usage:
//
//	tracker := quota.NewTracker(quota.Limits{
//	    quota.CategoryLike:   100,
//	    quota.CategoryFollow: 30,
//	})
//
//	ok, err := tracker.CanPerform(quota.CategoryLike)
//	if err != nil {
//	    // unknown category
//	}
//	if ok {
//	    // perform the action, then:
//	    if err := tracker.Record(quota.CategoryLike); err != nil {
//	        // ceiling reached between the check and the record
//	    }
//	}
//
// Concurrent callers sharing one Tracker must hold their own lock across the
// CanPerform+Record pair; see the Tracker documentation.
package quota
