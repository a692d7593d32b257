package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/mock/gomock"

	"go.trai.ch/dslhost/internal/adapters/telemetry"
	"go.trai.ch/dslhost/internal/core/ports/mocks"
)

func TestBridge_LogsFinishedSpans(t *testing.T) {
	t.Parallel()

	logger := mocks.NewMockLogger(gomock.NewController(t))
	var msgs []string
	logger.EXPECT().Debug(gomock.Any()).Do(func(msg string) { msgs = append(msgs, msg) }).Times(2)

	tp := telemetry.NewProvider(logger)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := tp.Tracer("test")

	_, ok := tracer.Start(t.Context(), "engine.compile")
	ok.End()

	_, failed := tracer.Start(t.Context(), "factory.create")
	failed.SetStatus(codes.Error, "script not found")
	failed.End()

	if assert.Len(t, msgs, 2) {
		assert.Contains(t, msgs[0], "engine.compile took ")
		assert.Contains(t, msgs[1], "factory.create took ")
		assert.Contains(t, msgs[1], "(failed: script not found)")
	}
}

func TestBridge_NilLogger(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(nil)))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(t.Context(), "noop")
	span.End()
}

func TestBridge_FlushAndShutdown(t *testing.T) {
	t.Parallel()

	bridge := telemetry.NewBridge(nil)
	assert.NoError(t, bridge.ForceFlush(t.Context()))
	assert.NoError(t, bridge.Shutdown(t.Context()))
}
