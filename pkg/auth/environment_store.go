package auth

import (
	"os"
	"strings"
	"time"
)

// TokenEnvVar holds an API token supplied through the environment
const TokenEnvVar = "CBLCRAWL_API_TOKEN"

// EnvironmentStore implements TokenStore on top of CBLCRAWL_API_TOKEN.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(token *Token) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment token under whatever name is asked for
func (e *EnvironmentStore) Retrieve(name string) (*Token, error) {
	value := strings.TrimSpace(os.Getenv(TokenEnvVar))
	if value == "" {
		return nil, ErrTokenNotFound
	}

	if name == "" {
		name = DefaultTokenName
	}

	return &Token{
		Name:         name,
		Value:        value,
		LastModified: time.Now(),
	}, nil
}

// List returns a single token if the environment variable is set
func (e *EnvironmentStore) List() ([]*Token, error) {
	token, err := e.Retrieve("")
	if err != nil {
		return []*Token{}, nil
	}
	return []*Token{token}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment token is set
func (e *EnvironmentStore) Exists(name string) bool {
	return strings.TrimSpace(os.Getenv(TokenEnvVar)) != ""
}
