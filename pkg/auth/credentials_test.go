package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// memoryStore is an in-memory CredentialStore for testing the manager's
// fallback behavior.
type memoryStore struct {
	accounts map[string]*Account
	failing  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*Account)}
}

func (s *memoryStore) Store(account *Account) error {
	if s.failing {
		return ErrStoreUnavailable
	}
	copy := *account
	s.accounts[account.Username] = &copy
	return nil
}

func (s *memoryStore) Retrieve(username string) (*Account, error) {
	if s.failing {
		return nil, ErrStoreUnavailable
	}
	account, ok := s.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

func (s *memoryStore) List() ([]*Account, error) {
	if s.failing {
		return nil, ErrStoreUnavailable
	}
	var result []*Account
	for _, a := range s.accounts {
		result = append(result, a)
	}
	return result, nil
}

func (s *memoryStore) Delete(username string) error {
	if s.failing {
		return ErrStoreUnavailable
	}
	if _, ok := s.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(s.accounts, username)
	return nil
}

func (s *memoryStore) Exists(username string) bool {
	_, ok := s.accounts[username]
	return ok
}

func validAccount() *Account {
	return &Account{
		Username:  "testuser",
		SessionID: "session123",
		CSRFToken: "csrf456",
		UserAgent: "Mozilla/5.0",
	}
}

func TestAccountValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Account)
		wantErr bool
	}{
		{"valid", func(a *Account) {}, false},
		{"missing username", func(a *Account) { a.Username = "" }, true},
		{"missing session", func(a *Account) { a.SessionID = "" }, true},
		{"missing csrf", func(a *Account) { a.CSRFToken = "" }, true},
		{"user agent optional", func(a *Account) { a.UserAgent = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := validAccount()
			tt.mutate(account)
			err := account.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagerStoreAndRetrieve(t *testing.T) {
	store := newMemoryStore()
	mgr := NewManagerWithStores(store)

	account := validAccount()
	if err := mgr.Store(account); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	got, err := mgr.Retrieve("testuser")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got.SessionID != "session123" {
		t.Errorf("Expected session123, got %s", got.SessionID)
	}
}

func TestManagerFallsThroughFailingStore(t *testing.T) {
	broken := newMemoryStore()
	broken.failing = true
	working := newMemoryStore()
	mgr := NewManagerWithStores(broken, working)

	if err := mgr.Store(validAccount()); err != nil {
		t.Fatalf("Store should fall through to the working store: %v", err)
	}
	if !working.Exists("testuser") {
		t.Error("Expected account in fallback store")
	}

	if _, err := mgr.Retrieve("testuser"); err != nil {
		t.Errorf("Retrieve should fall through: %v", err)
	}
}

func TestManagerRejectsIncompleteAccount(t *testing.T) {
	mgr := NewManagerWithStores(newMemoryStore())
	if err := mgr.Store(&Account{Username: "x"}); err == nil {
		t.Error("Expected error for incomplete account")
	}
}

func TestManagerDelete(t *testing.T) {
	store := newMemoryStore()
	mgr := NewManagerWithStores(store)
	if err := mgr.Store(validAccount()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := mgr.Delete("testuser"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := mgr.Retrieve("testuser"); err == nil {
		t.Error("Expected retrieval to fail after delete")
	}
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := newMemoryStore()
	newer := newMemoryStore()

	stale := validAccount()
	stale.SessionID = "stale"
	stale.LastModified = time.Now().Add(-time.Hour)
	older.accounts[stale.Username] = stale

	fresh := validAccount()
	fresh.SessionID = "fresh"
	fresh.LastModified = time.Now()
	newer.accounts[fresh.Username] = fresh

	mgr := NewManagerWithStores(older, newer)
	accounts, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("Expected 1 account, got %d", len(accounts))
	}
	if accounts[0].SessionID != "fresh" {
		t.Errorf("Expected newest credentials to win, got %s", accounts[0].SessionID)
	}
}

func TestEnvironmentStoreReadOnly(t *testing.T) {
	os.Setenv("IGENGAGE_SESSION_ID", "env-session")
	os.Setenv("IGENGAGE_CSRF_TOKEN", "env-csrf")
	defer func() {
		os.Unsetenv("IGENGAGE_SESSION_ID")
		os.Unsetenv("IGENGAGE_CSRF_TOKEN")
	}()

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if account.Username != "default" || account.SessionID != "env-session" {
		t.Errorf("Unexpected account from environment: %+v", account)
	}

	if err := store.Store(validAccount()); err != ErrStoreUnavailable {
		t.Errorf("Expected ErrStoreUnavailable from Store, got %v", err)
	}
	if err := store.Delete("default"); err != ErrStoreUnavailable {
		t.Errorf("Expected ErrStoreUnavailable from Delete, got %v", err)
	}

	// Incomplete environment credentials are treated as absent
	os.Unsetenv("IGENGAGE_CSRF_TOKEN")
	if _, err := store.Retrieve(""); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	os.Setenv("IGENGAGE_PASSPHRASE", "test-passphrase")
	defer os.Unsetenv("IGENGAGE_PASSPHRASE")

	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	account := validAccount()
	account.LastModified = time.Now()
	if err := store.Store(account); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// A fresh store instance over the same file must decrypt it
	reopened, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	got, err := reopened.Retrieve("testuser")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if got.SessionID != account.SessionID {
		t.Errorf("Expected %s, got %s", account.SessionID, got.SessionID)
	}

	// Ciphertext on disk must not leak the session ID
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if len(raw) == 0 || strings.Contains(string(raw), account.SessionID) {
		t.Error("Credentials file leaks plaintext session ID")
	}
}
