// Package store persists a Table between runs.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sabarim/intraday/internal/config"
	"github.com/sabarim/intraday/internal/model"
)

// TableStore loads and saves the whole Table of one series.
type TableStore interface {
	// Load returns the persisted table, or an empty table when nothing is stored yet.
	Load(ctx context.Context) (model.Table, error)
	// Save replaces the persisted content with t.
	Save(ctx context.Context, t model.Table) error
	// Location describes where the table lives, for logging.
	Location() string
	Close() error
}

// New creates the TableStore selected by cfg.Store.Format.
func New(cfg config.Config) (TableStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Format)) {
	case config.FormatCSV:
		return NewCSVStore(cfg.Store.OutputPath), nil
	case config.FormatJSON:
		return NewJSONStore(cfg.Store.OutputPath), nil
	case config.FormatSQLite:
		db, err := OpenSQLite(cfg.Store.OutputPath)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db, cfg.Download.Symbol, cfg.Download.Interval)
	case config.FormatPostgres:
		db, err := OpenPostgres(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db, cfg.Download.Symbol, cfg.Download.Interval)
	default:
		return nil, fmt.Errorf("unsupported store format %q (use: csv, json, sqlite, postgres)", cfg.Store.Format)
	}
}

// fileIsEmpty reports whether path is absent or has zero size.
func fileIsEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return info.Size() == 0, nil
}

// writeFileAtomic writes through fill into a temp file next to path and renames it over path.
func writeFileAtomic(path string, fill func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
