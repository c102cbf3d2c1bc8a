package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"promptlab/internal/failure"
)

// FileStore keeps the record as a JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// DefaultPath returns the record location under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "promptlab", StorageKey+".json"), nil
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the file the record is stored in.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (Configuration, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("config_read_failed", "path", s.path, "error", err)
		}
		return Configuration{}, false
	}
	cfg, err := decode(data)
	if err != nil {
		s.logger.Error("config_parse_failed", "path", s.path, "error", err)
		return Configuration{}, false
	}
	return cfg, true
}

// Save replaces the record. The write goes to a temporary file that is renamed into
// place, so a failed save leaves the previous record readable.
func (s *FileStore) Save(_ context.Context, cfg Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return failure.Persistence(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return failure.Persistence(err)
	}
	tmp, err := os.CreateTemp(dir, "."+StorageKey+"-*")
	if err != nil {
		return failure.Persistence(err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return failure.Persistence(err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return failure.Persistence(err)
	}
	if err := tmp.Close(); err != nil {
		return failure.Persistence(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return failure.Persistence(err)
	}
	return nil
}
