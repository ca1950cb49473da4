package auth

import "os"

// Environment variable names consulted by the read-only store.
const (
	envSessionID = "IGENGAGE_SESSION_ID"
	envCSRFToken = "IGENGAGE_CSRF_TOKEN"
	envUserAgent = "IGENGAGE_USER_AGENT"
)

// EnvironmentStore resolves credentials from the process environment. It is
// read only: Store and Delete report ErrStoreUnavailable so the manager falls
// through to a writable store.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve builds an account from the environment. The environment carries no
// username, so the caller's name is used, defaulting to "default".
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		username = "default"
	}

	account := &Account{
		Username:  username,
		SessionID: os.Getenv(envSessionID),
		CSRFToken: os.Getenv(envCSRFToken),
		UserAgent: os.Getenv(envUserAgent),
	}
	if err := account.Validate(); err != nil {
		return nil, ErrCredentialsNotFound
	}

	return account, nil
}

// List returns a single account if environment credentials are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
