// Package modstore keeps compiled modules as files named after their batch
// checksum.
package modstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ModuleStore = (*Store)(nil)

// Store implements ports.ModuleStore with one file per key under dir.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created by the first
// compilation that saves a module.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the modules.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, domain.ModuleFileName(key))
}

// Exists reports whether a module file exists for key.
func (s *Store) Exists(key string) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the module bytes for key.
func (s *Store) Read(key string) ([]byte, error) {
	//nolint:gosec // path is the cache directory joined with a hex key
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrModuleStoreReadFailed.Error()), "key", key)
	}
	return data, nil
}

// Remove deletes the module for key. A missing module is not an error.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrModuleStoreWriteFailed.Error()), "key", key)
	}
	return nil
}

// Clear removes every module file. Other files in the directory are kept.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, domain.ErrModuleStoreReadFailed.Error()), "dir", s.dir)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), domain.ModuleFileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrModuleStoreWriteFailed.Error()), "dir", s.dir)
	}
	return nil
}
