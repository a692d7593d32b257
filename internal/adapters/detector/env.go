// Package detector picks the log format for the current environment.
package detector

import (
	"os"

	"golang.org/x/term"
)

// Format is the rendering of log records.
type Format int

const (
	// FormatAuto defers to DetectFormat.
	FormatAuto Format = iota
	// FormatPretty renders colored, human readable lines.
	FormatPretty
	// FormatJSON renders one JSON object per record.
	FormatJSON
)

// DetectFormat returns the format suited to the environment. Logs go to
// stderr, so JSON is chosen when stderr is not a terminal or CI is set.
func DetectFormat() Format {
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))

	ci := os.Getenv("CI")
	isCI := ci == "true" || ci == "1"

	if !isTTY || isCI {
		return FormatJSON
	}
	return FormatPretty
}

// ResolveFormat applies the user's flag to the detected format.
// userFlag should be one of: "auto", "pretty", "text", "json", or empty.
func ResolveFormat(autoDetected Format, userFlag string) Format {
	switch userFlag {
	case "pretty", "text":
		return FormatPretty
	case "json":
		return FormatJSON
	default:
		return autoDetected
	}
}
