package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.trai.ch/dslhost/internal/adapters/logger"
)

func TestConsoleHandler_Attributes(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	log := slog.New(logger.NewConsoleHandlerExported(&buf, slog.LevelInfo))

	log.With("engine", "console").WithGroup("cache").WithGroup("disk").Warn("slow load", "key", "abc")
	assert.Equal(t, "! slow load engine=console cache.disk.key=abc\n", buf.String())

	buf.Reset()
	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestConsoleHandler_MultiLine(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	log := slog.New(logger.NewConsoleHandlerExported(&buf, slog.LevelDebug))

	log.Error("first\n\n  second")
	assert.Equal(t, "✗ first\n\n  second\n", buf.String())
}
