package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"igengage/pkg/logger"
	"igengage/pkg/quota"
)

// FollowedUser is one account the bot followed, kept so a later session can
// unfollow it once it has aged past the grace period.
type FollowedUser struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	FollowedAt time.Time `json:"followed_at"`
}

// State represents the persisted state of an engagement account
type State struct {
	Username      string         `json:"username"`
	Quota         quota.State    `json:"quota"`
	Followed      []FollowedUser `json:"followed"`
	LastSessionID string         `json:"last_session_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Version       int            `json:"version"`
}

// Manager handles state persistence for one account
type Manager struct {
	statePath string
	logger    logger.Logger
}

// NewManager creates a state manager for the given account. An empty dir
// selects the platform data directory.
func NewManager(username string, dir string) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "sessions")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Manager{
		statePath: filepath.Join(dir, fmt.Sprintf("%s.state.json", username)),
		logger:    logger.GetLogger(),
	}, nil
}

// Create creates a fresh state with the given quota snapshot
func (m *Manager) Create(username string, quotaState quota.State) (*State, error) {
	state := &State{
		Username:  username,
		Quota:     quotaState,
		Followed:  nil,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Version:   1,
	}

	if err := m.Save(state); err != nil {
		return nil, fmt.Errorf("failed to save initial state: %w", err)
	}

	m.logger.InfoWithFields("Session state created", map[string]interface{}{
		"username": username,
		"path":     m.statePath,
	})

	return state, nil
}

// Load loads an existing state. It returns (nil, nil) when no state file
// exists yet.
func (m *Manager) Load() (*State, error) {
	file, err := os.Open(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	var state State
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}

	m.logger.InfoWithFields("Session state loaded", map[string]interface{}{
		"username":   state.Username,
		"followed":   len(state.Followed),
		"updated_at": state.UpdatedAt,
	})

	return &state, nil
}

// Save saves the state to disk atomically
func (m *Manager) Save(state *State) error {
	state.UpdatedAt = time.Now()

	tempPath := m.statePath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, m.statePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	m.logger.DebugWithFields("Session state saved", map[string]interface{}{
		"username": state.Username,
		"followed": len(state.Followed),
	})

	return nil
}

// Delete removes the state file
func (m *Manager) Delete() error {
	if err := os.Remove(m.statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	m.logger.Info("Session state deleted")
	return nil
}

// Exists checks if a state file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.statePath)
	return err == nil
}

// RecordFollow appends a followed account to the unfollow backlog and saves
func (m *Manager) RecordFollow(state *State, userID, username string) error {
	state.Followed = append(state.Followed, FollowedUser{
		UserID:     userID,
		Username:   username,
		FollowedAt: time.Now(),
	})
	return m.Save(state)
}

// RemoveFollowed drops the given user IDs from the backlog and saves.
// Called after a successful unfollow pass.
func (m *Manager) RemoveFollowed(state *State, userIDs []string) error {
	drop := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		drop[id] = true
	}

	kept := state.Followed[:0]
	for _, f := range state.Followed {
		if !drop[f.UserID] {
			kept = append(kept, f)
		}
	}
	state.Followed = kept
	return m.Save(state)
}

// DueForUnfollow returns the user IDs followed longer ago than the grace
// period, oldest first.
func (s *State) DueForUnfollow(grace time.Duration, now time.Time) []string {
	var due []string
	for _, f := range s.Followed {
		if now.Sub(f.FollowedAt) >= grace {
			due = append(due, f.UserID)
		}
	}
	return due
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igengage")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igengage")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igengage")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igengage")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
