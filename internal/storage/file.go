package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kalambet/edumood/internal/feedback"
)

// FileStore keeps every record in a single JSON array file. Each Append
// rewrites the whole file through a temp file and a rename, so readers see
// either the old or the new contents.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path. The file is
// created on first Append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// errCorruptFile marks a data file that exists but does not hold a JSON
// array of records.
var errCorruptFile = errors.New("corrupt feedback file")

// Load returns all records. A missing, empty, unreadable or unparsable file
// yields an empty slice and a nil error.
func (s *FileStore) Load() ([]feedback.Record, error) {
	records, err := s.read()
	if err != nil {
		slog.Warn("could not load feedback file, treating as empty", "path", s.path, "error", err)
		return []feedback.Record{}, nil
	}
	return records, nil
}

// read returns the stored records. A missing or zero-length file is an
// empty store; any other read failure is returned as is, and a parse
// failure wraps errCorruptFile.
func (s *FileStore) read() ([]feedback.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []feedback.Record{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []feedback.Record{}, nil
	}

	var records []feedback.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptFile, err)
	}
	if records == nil {
		records = []feedback.Record{}
	}
	return records, nil
}

// Append adds r at the end of the stored sequence. A corrupt file is moved
// aside to <path>.corrupt-<time> and a fresh array is started; any other
// read failure aborts the append with the file untouched.
func (s *FileStore) Append(r feedback.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	switch {
	case errors.Is(err, errCorruptFile):
		if err := s.quarantine(); err != nil {
			return err
		}
		records = []feedback.Record{}
	case err != nil:
		return fmt.Errorf("reading feedback file: %w", err)
	}

	data, err := json.MarshalIndent(append(records, r), "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling feedback: %w", err)
	}
	return writeFileAtomic(s.path, data, 0o644)
}

func (s *FileStore) quarantine() error {
	dst := s.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	if err := os.Rename(s.path, dst); err != nil {
		return fmt.Errorf("moving corrupt feedback file aside: %w", err)
	}
	slog.Warn("corrupt feedback file moved aside", "path", s.path, "saved_as", dst)
	return nil
}

// Close is a no-op; FileStore holds no open handles between calls.
func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Any early return leaves the target untouched.
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
