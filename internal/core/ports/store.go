package ports

// ModuleStore locates the persisted modules keyed by their batch checksum.
// Modules are written by the compiler's save step at Path(key).
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ModuleStore interface {
	// Path returns the file backing the given key.
	Path(key string) string

	// Exists reports whether a persisted module exists for key.
	Exists(key string) bool

	// Read returns the persisted bytes for key.
	Read(key string) ([]byte, error)

	// Remove deletes the persisted module for key. Removing a missing key is not an error.
	Remove(key string) error

	// Clear removes every persisted module.
	Clear() error
}
