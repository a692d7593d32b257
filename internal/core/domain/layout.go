package domain

import (
	"os"
	"path/filepath"
)

const (
	// HostDirName is the name of the internal workspace directory.
	HostDirName = ".dslhost"

	// CacheDirName is the name of the compiled module cache directory.
	CacheDirName = "cache"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "dslhost.yaml"

	// DefaultPattern is the glob used to find scripts when none is configured.
	DefaultPattern = "*.dsl"

	// ModuleFileExt is the extension of persisted compiled modules.
	ModuleFileExt = ".cache"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultHostPath returns the default root directory for dslhost metadata.
func DefaultHostPath() string {
	return HostDirName
}

// DefaultCachePath returns the default on-disk module cache directory.
// It lives under the system temp directory so that caches survive across
// working directories, like compiled script assemblies do.
func DefaultCachePath() string {
	return filepath.Join(os.TempDir(), "dslhost", CacheDirName)
}

// ModuleFileName returns the file name for a persisted module with the given key.
func ModuleFileName(key string) string {
	return key + ModuleFileExt
}
