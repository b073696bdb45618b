package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot files kept in the compiled cache directory.
const (
	RoutesSnapshot = "routes.json"
	ConfigSnapshot = "config.json"
)

// FileFlusher removes one compiled snapshot file.
type FileFlusher struct {
	name string
	path string
}

// NewFileFlusher returns a Flusher called name that deletes dir/file.
func NewFileFlusher(name, dir, file string) *FileFlusher {
	return &FileFlusher{name: name, path: filepath.Join(dir, file)}
}

// Name implements Flusher.
func (f *FileFlusher) Name() string { return f.name }

// Flush deletes the snapshot. A missing snapshot is already flushed.
func (f *FileFlusher) Flush(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", f.path, err)
	}

	return nil
}

// WriteSnapshot stores v as indented JSON in dir/file, creating dir.
// The file is written to a temporary name first and renamed into place.
func WriteSnapshot(dir, file string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", file, err)
	}

	tmp, err := os.CreateTemp(dir, file+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", file, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("writing %s: %w", file, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("closing %s: %w", file, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, file)); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("renaming %s: %w", file, err)
	}

	return nil
}
