package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"go.trai.ch/dslhost/internal/adapters/telemetry"
	"go.trai.ch/dslhost/internal/core/ports"
)

func setupRecorder(t *testing.T) (*tracetest.SpanRecorder, *telemetry.OTelTracer) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, telemetry.NewOTelTracerFrom(tp, "test-tracer")
}

func attributes(kvs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, a := range kvs {
		out[string(a.Key)] = a.Value.AsInterface()
	}
	return out
}

func TestOTelTracer_StartAttributes(t *testing.T) {
	t.Parallel()

	sr, tracer := setupRecorder(t)
	_, span := tracer.Start(t.Context(), "engine.compile",
		ports.WithAttribute("engine", "console"),
		ports.WithAttribute("urls", 3),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.compile", spans[0].Name())
	assert.Equal(t, map[string]any{"engine": "console", "urls": int64(3)}, attributes(spans[0].Attributes()))
}

func TestOTelSpan_SetAttribute(t *testing.T) {
	t.Parallel()

	sr, tracer := setupRecorder(t)
	_, span := tracer.Start(t.Context(), "attr-test")

	span.SetAttribute("str", "val")
	span.SetAttribute("int", 123)
	span.SetAttribute("int64", int64(456))
	span.SetAttribute("float", 3.5)
	span.SetAttribute("bool", true)
	span.SetAttribute("slice", []string{"a", "b"})
	span.SetAttribute("unknown", struct{}{})
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, map[string]any{
		"str":     "val",
		"int":     int64(123),
		"int64":   int64(456),
		"float":   3.5,
		"bool":    true,
		"slice":   []string{"a", "b"},
		"unknown": "{}",
	}, attributes(spans[0].Attributes()))
}

func TestOTelSpan_RecordError(t *testing.T) {
	t.Parallel()

	sr, tracer := setupRecorder(t)
	_, span := tracer.Start(t.Context(), "factory.create")
	span.RecordError(errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
