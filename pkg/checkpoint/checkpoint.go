package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"cblcrawl/pkg/logger"
)

// Document is the persisted checkpoint: the cursor to resume after, or null
// to start from the beginning.
type Document struct {
	After *string `json:"after"`
}

// Store persists a single resume cursor
type Store interface {
	// Load returns the saved cursor, or nil when there is none or the saved
	// value is unreadable.
	Load(ctx context.Context) (*string, error)

	// Save replaces the saved cursor. A reader never observes a partial value.
	Save(ctx context.Context, cursor *string) error

	// Location describes where the cursor lives, for log and CLI output
	Location() string
}

var salvagePattern = regexp.MustCompile(`"after":\s*"([^"]+)"`)

// FileStore keeps the checkpoint as a small JSON file
type FileStore struct {
	path    string
	salvage bool
	logger  logger.Logger
	mu      sync.Mutex
}

// NewFileStore creates a file-backed store at path. With salvage enabled a
// corrupted file is searched for an "after" value before giving up on it.
func NewFileStore(path string, log logger.Logger, salvage bool) *FileStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileStore{
		path:    path,
		salvage: salvage,
		logger:  log.WithField("checkpoint", path),
	}
}

// Location returns the checkpoint file path
func (s *FileStore) Location() string {
	return s.path
}

// Load reads the checkpoint file. A missing file yields nil; a file that does
// not decode is logged and also yields nil.
func (s *FileStore) Load(ctx context.Context) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("No checkpoint found, starting from the beginning")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	cursor, err := decode(data)
	if err == nil {
		s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{"cursor": cursor})
		return cursor, nil
	}

	s.logger.WithError(err).Warn("Checkpoint file is corrupted")
	if s.salvage {
		if m := salvagePattern.FindSubmatch(data); m != nil {
			recovered := string(m[1])
			s.logger.InfoWithFields("Recovered cursor from corrupted checkpoint", map[string]interface{}{"cursor": recovered})
			return &recovered, nil
		}
		s.logger.Warn("Unable to recover cursor, starting from the beginning")
	}
	return nil, nil
}

func decode(data []byte) (*string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	after, ok := raw["after"]
	if !ok || bytes.Equal(bytes.TrimSpace(after), []byte("null")) {
		return nil, nil
	}
	var cursor string
	if err := json.Unmarshal(after, &cursor); err != nil {
		return nil, fmt.Errorf("checkpoint cursor is not a string: %w", err)
	}
	return &cursor, nil
}

func encode(cursor *string) ([]byte, error) {
	return json.Marshal(Document{After: cursor})
}

// Save writes the cursor to a temporary file in the same directory, syncs it
// and renames it over the checkpoint.
func (s *FileStore) Save(ctx context.Context, cursor *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := encode(cursor)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{"cursor": cursor})
	return nil
}
