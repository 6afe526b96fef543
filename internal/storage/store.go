package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kalambet/edumood/internal/feedback"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	jsonFileName   = "data.json"
	sqliteFileName = "edumood.db"
)

// Backend is a feedback.Store that may hold resources.
type Backend interface {
	feedback.Store
	Close() error
}

// Open returns the store for the named backend rooted at dataDir.
func Open(backend, dataDir string) (Backend, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	switch backend {
	case BackendJSON, "":
		return NewFileStore(filepath.Join(dataDir, jsonFileName)), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dataDir, sqliteFileName))
	default:
		return nil, fmt.Errorf("unknown storage backend %q (supported: json, sqlite)", backend)
	}
}
