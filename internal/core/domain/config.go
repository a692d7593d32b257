package domain

import "time"

// Config is the resolved host configuration.
type Config struct {
	// Root is the directory that holds the configuration file, or the
	// working directory when no file was found.
	Root string
	// BaseDirectory is the directory relative script urls resolve against.
	BaseDirectory string
	// Pattern is the glob scripts must match.
	Pattern string
	// CacheDirectory holds persisted modules.
	CacheDirectory string
	// PersistentCache routes compilation through the on-disk module cache.
	PersistentCache bool
	// Debounce is the window used to coalesce file change events.
	Debounce time.Duration
	// ForwardConstructors enables constructor forwarding in synthesized classes.
	ForwardConstructors bool
}

// DefaultDebounce is the default window for coalescing file change events.
const DefaultDebounce = 50 * time.Millisecond

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:                root,
		BaseDirectory:       root,
		Pattern:             DefaultPattern,
		CacheDirectory:      DefaultCachePath(),
		PersistentCache:     true,
		Debounce:            DefaultDebounce,
		ForwardConstructors: true,
	}
}
