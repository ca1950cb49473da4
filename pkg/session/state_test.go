package session

import (
	"testing"
	"time"

	"igengage/pkg/quota"
)

func TestStateManager(t *testing.T) {
	tempDir := t.TempDir()
	username := "testuser"

	quotaState := quota.State{
		Counts:      map[quota.Category]int{quota.CategoryLike: 5},
		WindowStart: time.Now().Add(-2 * time.Hour),
	}

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(username, tempDir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		state, err := mgr.Create(username, quotaState)
		if err != nil {
			t.Fatalf("Failed to create state: %v", err)
		}
		if state.Username != username {
			t.Errorf("Expected username %s, got %s", username, state.Username)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load state: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected state, got nil")
		}
		if loaded.Quota.Counts[quota.CategoryLike] != 5 {
			t.Errorf("Expected like count 5, got %d", loaded.Quota.Counts[quota.CategoryLike])
		}
	})

	t.Run("LoadMissingReturnsNil", func(t *testing.T) {
		mgr, err := NewManager("nobody", tempDir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if loaded != nil {
			t.Error("Expected nil state for missing file")
		}
	})

	t.Run("FollowBacklog", func(t *testing.T) {
		mgr, err := NewManager(username, tempDir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		state, err := mgr.Create(username, quotaState)
		if err != nil {
			t.Fatalf("Failed to create state: %v", err)
		}

		if err := mgr.RecordFollow(state, "u1", "alice"); err != nil {
			t.Fatalf("Failed to record follow: %v", err)
		}
		if err := mgr.RecordFollow(state, "u2", "bob"); err != nil {
			t.Fatalf("Failed to record follow: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load state: %v", err)
		}
		if len(loaded.Followed) != 2 {
			t.Fatalf("Expected 2 followed users, got %d", len(loaded.Followed))
		}

		if err := mgr.RemoveFollowed(loaded, []string{"u1"}); err != nil {
			t.Fatalf("Failed to remove followed: %v", err)
		}
		reloaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to reload state: %v", err)
		}
		if len(reloaded.Followed) != 1 || reloaded.Followed[0].UserID != "u2" {
			t.Errorf("Expected only u2 left, got %+v", reloaded.Followed)
		}
	})

	t.Run("DueForUnfollow", func(t *testing.T) {
		now := time.Now()
		state := &State{
			Followed: []FollowedUser{
				{UserID: "old", FollowedAt: now.Add(-80 * time.Hour)},
				{UserID: "recent", FollowedAt: now.Add(-1 * time.Hour)},
			},
		}

		due := state.DueForUnfollow(72*time.Hour, now)
		if len(due) != 1 || due[0] != "old" {
			t.Errorf("Expected [old], got %v", due)
		}
	})

	t.Run("DeleteAndExists", func(t *testing.T) {
		mgr, err := NewManager(username, tempDir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if _, err := mgr.Create(username, quotaState); err != nil {
			t.Fatalf("Failed to create state: %v", err)
		}
		if !mgr.Exists() {
			t.Error("Expected state to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete state: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected state to be gone")
		}
		// Deleting again is not an error
		if err := mgr.Delete(); err != nil {
			t.Errorf("Second delete should be a no-op: %v", err)
		}
	})
}

func TestQuotaRoundTripThroughState(t *testing.T) {
	tempDir := t.TempDir()

	tracker := quota.NewTracker(quota.Limits{
		quota.CategoryLike:   10,
		quota.CategoryFollow: 5,
	})
	for i := 0; i < 3; i++ {
		if err := tracker.Record(quota.CategoryLike); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}

	mgr, err := NewManager("roundtrip", tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if _, err := mgr.Create("roundtrip", tracker.State()); err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}

	restored := quota.NewTracker(quota.Limits{
		quota.CategoryLike:   10,
		quota.CategoryFollow: 5,
	})
	restored.Restore(loaded.Quota)

	remaining, err := restored.Remaining(quota.CategoryLike)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 7 {
		t.Errorf("Expected 7 remaining likes after restore, got %d", remaining)
	}
}
