package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/dslhost/internal/ui/output"
	"go.trai.ch/dslhost/internal/ui/style"
)

// levelFormat is the icon and style of one log level.
type levelFormat struct {
	icon  string
	style lipgloss.Style
}

// consoleHandler is a slog.Handler printing one colored entry per record.
// Multi-line messages, such as formatted error chains, keep their layout:
// every line is styled on its own so lipgloss does not pad them to a block.
type consoleHandler struct {
	w       io.Writer
	level   slog.Leveler
	formats map[slog.Level]levelFormat
	attrs   string
	prefix  string
}

func newConsoleHandler(w io.Writer, level slog.Leveler) *consoleHandler {
	if w == nil {
		w = os.Stderr
	}
	r := output.NewRenderer(w)
	return &consoleHandler{
		w:     w,
		level: level,
		formats: map[slog.Level]levelFormat{
			slog.LevelDebug: {icon: style.Tilde, style: r.NewStyle().Foreground(style.Iris)},
			slog.LevelInfo:  {style: r.NewStyle().Foreground(style.Slate)},
			slog.LevelWarn:  {icon: style.Warning, style: r.NewStyle().Foreground(style.Yellow)},
			slog.LevelError: {icon: style.Cross, style: r.NewStyle().Foreground(style.Red)},
		},
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

//nolint:gocritic // slog.Handler requires slog.Record by value
func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	f, ok := h.formats[r.Level]
	if !ok {
		f = h.formats[slog.LevelInfo]
	}

	msg := r.Message
	if f.icon != "" {
		msg = f.icon + " " + msg
	}
	msg += h.attrs
	r.Attrs(func(a slog.Attr) bool {
		msg += " " + h.prefix + a.Key + "=" + a.Value.String()
		return true
	})

	var sb strings.Builder
	for line := range strings.Lines(msg) {
		sb.WriteString(f.style.Render(strings.TrimSuffix(line, "\n")))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	for _, a := range attrs {
		c.attrs += " " + h.prefix + a.Key + "=" + a.Value.String()
	}
	return &c
}

// WithGroup qualifies the keys of later attributes with name. Groups nest.
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix += name + "."
	return &c
}
