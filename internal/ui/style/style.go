// Package style holds the colors, icons and lipgloss styles shared by the
// logger and the command line reports.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
)

// Report styles the lines of a check report.
type Report struct {
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Detail  lipgloss.Style
	Summary lipgloss.Style
}

// NewReport returns report styles bound to r, so colors follow the
// profile of the output r writes to.
func NewReport(r *lipgloss.Renderer) Report {
	return Report{
		Pass:    r.NewStyle().Foreground(Green),
		Fail:    r.NewStyle().Foreground(Red).Bold(true),
		Detail:  r.NewStyle().Foreground(Slate).PaddingLeft(2),
		Summary: r.NewStyle().Foreground(Iris).Bold(true),
	}
}
