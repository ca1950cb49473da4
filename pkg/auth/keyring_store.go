package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "igengage"

// keyringKey namespaces account entries within the keyring service.
func keyringKey(username string) string {
	return "account_" + username
}

// KeyringStore keeps credentials in the operating system keychain. Each
// account is one keyring entry holding the JSON-encoded Account.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed store. It fails when the keychain
// rejects writes so the manager falls through to the encrypted file store.
func NewKeyringStore() (*KeyringStore, error) {
	if !IsKeyringAvailable() {
		return nil, fmt.Errorf("keyring not available: %w", ErrStoreUnavailable)
	}
	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil {
		return ErrInvalidCredentials
	}
	if err := account.Validate(); err != nil {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := keyring.Set(keyringService, keyringKey(account.Username), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringKey(username))
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// List returns no accounts: go-keyring cannot enumerate entries, so listing
// is served by the encrypted file store in the manager's chain.
func (k *KeyringStore) List() ([]*Account, error) {
	return []*Account{}, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringKey(username)); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(username string) bool {
	if username == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringKey(username))
	return err == nil
}

// IsKeyringAvailable reports whether the system keychain accepts writes.
func IsKeyringAvailable() bool {
	const scratch = "availability_check"
	if err := keyring.Set(keyringService, scratch, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, scratch)
	return true
}
