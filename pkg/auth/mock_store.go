package auth

import (
	"sort"
	"sync"
)

// MockStore implements TokenStore in memory for tests
type MockStore struct {
	tokens map[string]*Token
	mu     sync.RWMutex

	// Error injection
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates an empty mock token store
func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]*Token)}
}

// Store saves a copy of the token
func (m *MockStore) Store(token *Token) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if token == nil || token.Name == "" || token.Value == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := *token
	m.tokens[token.Name] = &c
	return nil
}

// Retrieve returns a copy of the stored token
func (m *MockStore) Retrieve(name string) (*Token, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if name == "" {
		return nil, ErrInvalidToken
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	token, ok := m.tokens[name]
	if !ok {
		return nil, ErrTokenNotFound
	}
	c := *token
	return &c, nil
}

// List returns copies of all tokens sorted by name
func (m *MockStore) List() ([]*Token, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Token, 0, len(m.tokens))
	for _, token := range m.tokens {
		c := *token
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes the token
func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if name == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[name]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, name)
	return nil
}

// Exists checks if the token is stored
func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.tokens[name]
	return ok
}

// Count returns the number of stored tokens
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tokens)
}

// NewMockManager creates a Manager over a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
