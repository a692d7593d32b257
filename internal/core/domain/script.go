package domain

import "time"

// ScriptUnit is one source file as read for a single compilation.
// Units are re-read on every compile attempt and never mutated afterwards.
type ScriptUnit struct {
	// URL is the canonical location of the script.
	URL string
	// ModTime is the last-modified time observed when the unit was read.
	ModTime time.Time
	// Text is the raw script source.
	Text string
}

// Name returns the unit's canonical name, the file name without extension.
func (s ScriptUnit) Name() string {
	return TypeNameFromPath(s.URL)
}
