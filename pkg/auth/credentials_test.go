package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestManagerStoreRetrieveDelete(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(&Token{Value: "cbl_token_1234567890"}))
	assert.Equal(t, 1, store.Count())
	assert.True(t, store.Exists(DefaultTokenName))

	token, err := manager.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenName, token.Name)
	assert.Equal(t, "cbl_token_1234567890", token.Value)
	assert.False(t, token.LastModified.IsZero())

	tokens, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	require.NoError(t, manager.Delete(""))
	assert.Equal(t, 0, store.Count())

	_, err = manager.Retrieve(DefaultTokenName)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	assert.ErrorIs(t, manager.Delete(DefaultTokenName), ErrTokenNotFound)
}

func TestManagerRejectsEmptyToken(t *testing.T) {
	manager, _ := NewMockManager()
	assert.ErrorIs(t, manager.Store(&Token{Name: "x"}), ErrInvalidToken)
	assert.ErrorIs(t, manager.Store(nil), ErrInvalidToken)
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keyring locked")
	fallback := NewMockStore()

	manager := NewManagerWithStores(broken, fallback)
	require.NoError(t, manager.Store(&Token{Name: "ci", Value: "secret-value"}))

	assert.Equal(t, 0, broken.Count())
	assert.True(t, fallback.Exists("ci"))

	token, err := manager.Retrieve("ci")
	require.NoError(t, err)
	assert.Equal(t, "secret-value", token.Value)
}

func TestManagerStoreAllFail(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("disk full")

	err := NewManagerWithStores(broken).Store(&Token{Value: "v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestManagerListMergesNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	manager := NewManagerWithStores(older, newer)

	now := time.Now()
	require.NoError(t, older.Store(&Token{Name: "a", Value: "old-value", LastModified: now}))
	require.NoError(t, newer.Store(&Token{Name: "a", Value: "new-value", LastModified: now.Add(time.Minute)}))
	require.NoError(t, newer.Store(&Token{Name: "b", Value: "other", LastModified: now}))

	tokens, err := manager.List()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "a", tokens[0].Name)
	assert.Equal(t, "new-value", tokens[0].Value)
	assert.Equal(t, "b", tokens[1].Name)
}

func TestSanitizeToken(t *testing.T) {
	token := &Token{Name: "default", Value: "abcd1234efgh5678"}
	sanitized := SanitizeToken(token)

	assert.Equal(t, "default", sanitized.Name)
	assert.Equal(t, "abcd...5678", sanitized.Value)
	assert.Equal(t, "abcd1234efgh5678", token.Value)
	assert.Equal(t, "********", MaskString("short"))
	assert.Nil(t, SanitizeToken(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnvVar, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "nested", "token.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	_, err = store.Retrieve(DefaultTokenName)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, store.Store(&Token{Name: DefaultTokenName, Value: "plaintext-api-token"}))
	require.NoError(t, store.Store(&Token{Name: "ci", Value: "second-api-token"}))

	token, err := store.Retrieve(DefaultTokenName)
	require.NoError(t, err)
	assert.Equal(t, "plaintext-api-token", token.Value)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "plaintext-api-token")
	assert.NotContains(t, string(content), "second-api-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	tokens, err := store.List()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "ci", tokens[0].Name)

	require.NoError(t, store.Delete("ci"))
	require.NoError(t, store.Delete(DefaultTokenName))
	assert.NoFileExists(t, path)
	assert.ErrorIs(t, store.Delete(DefaultTokenName), ErrTokenNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.enc")

	t.Setenv(PassphraseEnvVar, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Token{Name: DefaultTokenName, Value: "v"}))

	t.Setenv(PassphraseEnvVar, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = other.Retrieve(DefaultTokenName)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenNotFound)
	assert.False(t, other.Exists(DefaultTokenName))
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(TokenEnvVar, "")
	assert.False(t, store.Exists(""))
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	t.Setenv(TokenEnvVar, " env-token ")
	token, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenName, token.Name)
	assert.Equal(t, "env-token", token.Value)

	tokens, err := store.List()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	assert.ErrorIs(t, store.Store(token), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(DefaultTokenName), ErrStoreUnavailable)
}

func TestManagerDeleteReadOnlyOnly(t *testing.T) {
	t.Setenv(TokenEnvVar, "env-token")
	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())

	token, err := manager.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", token.Value)

	assert.ErrorIs(t, manager.Delete(""), ErrTokenNotFound)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	assert.False(t, store.Exists(DefaultTokenName))
	require.NoError(t, store.Store(&Token{Name: DefaultTokenName, Value: "keyring-token"}))
	assert.True(t, store.Exists(DefaultTokenName))

	token, err := store.Retrieve(DefaultTokenName)
	require.NoError(t, err)
	assert.Equal(t, "keyring-token", token.Value)

	tokens, err := store.List()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	require.NoError(t, store.Delete(DefaultTokenName))
	assert.ErrorIs(t, store.Delete(DefaultTokenName), ErrTokenNotFound)
	_, err = store.Retrieve(DefaultTokenName)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.ErrorIs(t, store.Store(&Token{Name: "x"}), ErrInvalidToken)
}
