package ports

import "go.trai.ch/dslhost/internal/core/domain"

// Storage resolves, reads and watches the scripts an engine compiles.
//
//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks
type Storage interface {
	// FileNameFormat returns the glob that script file names must match.
	FileNameFormat() string

	// CanonizeURL resolves url against parentDir into its canonical form.
	CanonizeURL(parentDir, url string) string

	// GetMatchingURLsIn returns, in sorted order, every script matching the
	// file pattern that lives in the same directory as url.
	GetMatchingURLsIn(parentDir, url string) ([]string, error)

	// IsURLIncludedIn reports whether url is one of urls.
	IsURLIncludedIn(urls []string, parentDir, url string) bool

	// TypeNameFromURL returns the type name expected for the script at url.
	TypeNameFromURL(url string) string

	// IsValidScriptURL reports whether url points at a readable script.
	IsValidScriptURL(url string) bool

	// NotifyOnChange calls onChange, off the caller's goroutine, with the url
	// of every script in the directories of urls that changes.
	NotifyOnChange(urls []string, onChange func(url string)) error

	// ChecksumForURLs derives the persisted-module key for a batch.
	ChecksumForURLs(engineType string, urls []string) (string, error)

	// CreateInput reads the script at url for a compilation.
	CreateInput(url string) (domain.ScriptUnit, error)

	// Close stops every change notification.
	Close() error
}
