package domain

import (
	"path/filepath"
	"strings"
	"unique"
)

// ScriptURL is an interned, canonical script location.
// Canonical urls are repeated across the type cache, the standalone set and
// watcher callbacks, so they are interned once.
type ScriptURL struct {
	h unique.Handle[string]
}

// NewScriptURL interns the given canonical url.
func NewScriptURL(s string) ScriptURL {
	return ScriptURL{h: unique.Make(s)}
}

// NewScriptURLs interns every url in s.
func NewScriptURLs(s []string) []ScriptURL {
	res := make([]ScriptURL, len(s))
	for i, u := range s {
		res[i] = NewScriptURL(u)
	}
	return res
}

// String returns the canonical url.
func (u ScriptURL) String() string {
	var zero unique.Handle[string]
	if u.h == zero {
		return ""
	}
	return u.h.Value()
}

// IsZero reports whether u was never set.
func (u ScriptURL) IsZero() bool {
	return u.String() == ""
}

// Dir returns the directory holding the script.
func (u ScriptURL) Dir() string {
	return filepath.Dir(u.String())
}

// TypeName returns the file name of the script without its extension.
func (u ScriptURL) TypeName() string {
	return TypeNameFromPath(u.String())
}

// TypeNameFromPath returns the base name of path without its extension.
func TypeNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
