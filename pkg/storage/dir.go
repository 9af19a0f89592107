package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir implements [Store] on a local directory.
//
// Writes are atomic: Create stages the content in a temporary file and
// renames it into place on Close, so a crash mid-write never leaves a
// truncated blob where a good one used to be. Index snapshots rely on
// this.
type Dir struct {
	root string
}

var _ Store = (*Dir)(nil)

// NewDir creates a Dir store rooted at dir, creating the directory if
// needed.
func NewDir(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Dir{root: abs}, nil
}

// resolve maps a blob name to an absolute filesystem path.
func (d *Dir) resolve(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(d.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", name, err)
	}
	return f, nil
}

func (d *Dir) Create(_ context.Context, name string) (io.WriteCloser, error) {
	full := d.resolve(name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".staged-*")
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", name, err)
	}
	return &stagedFile{f: tmp, final: full}, nil
}

func (d *Dir) Remove(_ context.Context, name string) error {
	err := os.Remove(d.resolve(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d *Dir) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(d.resolve(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// stagedFile writes to a temporary file and renames it over the final
// path on Close. A failed write burns the temp file instead of the target.
type stagedFile struct {
	f     *os.File
	final string
}

func (s *stagedFile) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *stagedFile) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		os.Remove(s.f.Name())
		return err
	}
	if err := s.f.Close(); err != nil {
		os.Remove(s.f.Name())
		return err
	}
	if err := os.Rename(s.f.Name(), s.final); err != nil {
		os.Remove(s.f.Name())
		return err
	}
	return nil
}
