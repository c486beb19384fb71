// Package fileout persists the rendered chart to a single file on disk.
package fileout

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Adapter implements ports.ArtifactPort for a fixed file path.
type Adapter struct {
	path string
}

// New creates a file artifact adapter writing to path.
func New(path string) *Adapter {
	return &Adapter{path: path}
}

// Location returns the output file path.
func (a *Adapter) Location() string {
	return a.path
}

// Previous returns the content of the existing output file, or nil if the
// file does not exist yet.
func (a *Adapter) Previous(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading previous chart: %w", err)
	}
	return data, nil
}

// Write overwrites the output file. The document is written to a temp file
// in the same directory and renamed into place, so a failed write leaves the
// previous file intact.
func (a *Adapter) Write(ctx context.Context, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".repo-timeline-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("setting chart permissions: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", a.path, err)
	}
	return nil
}
