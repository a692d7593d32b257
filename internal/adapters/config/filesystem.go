package config

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Files is where the loader reads dslhost.yaml candidates from. A missing
// candidate is reported with an error matching fs.ErrNotExist.
type Files interface {
	ReadFile(path string) ([]byte, error)
}

type osFiles struct{}

func (osFiles) ReadFile(path string) ([]byte, error) {
	// #nosec G304 -- candidates are built while walking up from the working directory
	return os.ReadFile(path)
}

// Mount serves fsys as if it were the directory tree below dir. Paths
// outside dir do not exist.
func Mount(dir string, fsys fs.FS) Files {
	return mounted{dir: filepath.Clean(dir), fsys: fsys}
}

type mounted struct {
	dir  string
	fsys fs.FS
}

func (m mounted) ReadFile(path string) ([]byte, error) {
	rel, err := filepath.Rel(m.dir, path)
	if err != nil || !fs.ValidPath(filepath.ToSlash(rel)) {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return fs.ReadFile(m.fsys, filepath.ToSlash(rel))
}
