package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	snapshotDirPerm  = 0750
	snapshotFilePerm = 0600
)

// FileSnapshotter writes snapshots as indented JSON to a single file.
// Each save goes to a temporary file in the same directory that is then
// renamed over the target, so a crash never leaves a torn file behind.
type FileSnapshotter struct {
	path string
}

// NewFileSnapshotter creates a snapshotter for path.
func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{path: path}
}

// Path returns the snapshot file path.
func (f *FileSnapshotter) Path() string {
	return f.path
}

// Save writes snap atomically.
func (f *FileSnapshotter) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, snapshotDirPerm); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // Gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Chmod(snapshotFilePerm); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("setting snapshot permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot file. A missing file yields ErrNoSnapshot.
func (f *FileSnapshotter) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot %s: %w", f.path, err)
	}
	return snap, nil
}
