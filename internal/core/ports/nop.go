package ports

import "context"

// NopLogger discards every message. Components default to it when no
// logger is configured.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string) {}

// Info implements Logger.
func (NopLogger) Info(string) {}

// Warn implements Logger.
func (NopLogger) Warn(string) {}

// Error implements Logger.
func (NopLogger) Error(error) {}

// NopTracer starts spans that record nothing.
type NopTracer struct{}

// Start implements Tracer.
func (NopTracer) Start(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End()                     {}
func (nopSpan) RecordError(error)        {}
func (nopSpan) SetAttribute(string, any) {}
