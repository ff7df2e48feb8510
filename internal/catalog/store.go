package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"moviesync/internal/logging"
)

// Store is the catalog persistence collaborator: full reads and full overwrites.
type Store interface {
	ReadCatalog(ctx context.Context) ([]Record, error)
	WriteCatalog(ctx context.Context, records []Record) error
}

// ErrLocked is returned by FileStore.Lock when another process holds the catalog.
var ErrLocked = errors.New("catalog is locked by another process")

// FileStore keeps the catalog as a JSON array in a single file.
type FileStore struct {
	path   string
	logger *slog.Logger
	lock   *flock.Flock
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by path.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path required")
	}
	return &FileStore{
		path:   path,
		logger: logging.NewComponentLogger(logger, "catalog"),
		lock:   flock.New(path + ".lock"),
	}, nil
}

// Path returns the catalog file location.
func (s *FileStore) Path() string {
	return s.path
}

// Lock takes an exclusive, non-blocking lock on the catalog so two runs cannot
// interleave their checkpoints. The returned function releases it.
func (s *FileStore) Lock() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, s.lock.Path())
	}
	return s.lock.Unlock, nil
}

// ReadCatalog loads every record from disk.
func (s *FileStore) ReadCatalog(_ context.Context) ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	data = trimUTF8BOM(data)

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	s.logger.Debug("loaded catalog",
		logging.String("path", s.path),
		logging.Int("record_count", len(records)))
	return records, nil
}

// WriteCatalog replaces the file contents atomically via a temp file and rename.
func (s *FileStore) WriteCatalog(_ context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.logger.Debug("wrote catalog",
		logging.String("path", s.path),
		logging.Int("record_count", len(records)))
	return nil
}

func trimUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
