package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/albapepper/dropwatch/internal/pricing"
)

// FileBackend keeps the document in a single JSON file.
type FileBackend struct {
	path   string
	logger *slog.Logger
}

// NewFileBackend creates a backend writing to path.
func NewFileBackend(path string, logger *slog.Logger) *FileBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileBackend{path: path, logger: logger.With("backend", "file", "path", path)}
}

// Path returns the target file.
func (b *FileBackend) Path() string { return b.path }

// Load reads the document. A missing file is a first run and yields two
// empty stores.
func (b *FileBackend) Load(_ context.Context) (*pricing.Store, *pricing.Ledger, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		b.logger.Info("No state file, starting empty")
		return pricing.NewStore(), pricing.NewLedger(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read state: %w", err)
	}

	store, ledger, err := Decode(data, b.path)
	if err != nil {
		return nil, nil, err
	}
	b.logger.Info("State loaded",
		"tracked_skus", store.CountTrackedItems(), "ledger_entries", ledger.Len())
	return store, ledger, nil
}

// Save writes to a temp file in the target directory, syncs it and renames
// it over the target, so a crash leaves either the old or the new document.
func (b *FileBackend) Save(_ context.Context, store *pricing.Store, ledger *pricing.Ledger) error {
	data, err := Encode(store, ledger)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	committed = true

	b.logger.Debug("State saved",
		"tracked_skus", store.CountTrackedItems(), "ledger_entries", ledger.Len(), "bytes", len(data))
	return nil
}
