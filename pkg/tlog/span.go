package tlog

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// spanLogger wraps another Logger and additionally records every log call
// as a span event, the same pairing as _teacher_copy/pkg/log's
// SpanLogger/OtelSpanEventRecorder: each log line doubles as a trace
// annotation, and Error also marks the span failed.
type spanLogger struct {
	Logger
	span trace.Span
}

// WithSpan returns a Logger that annotates ctx's active span with every
// log line in addition to writing it through lg as usual. It returns lg
// unchanged when ctx carries no recording span, so callers can use it
// unconditionally without checking for tracing support first.
func WithSpan(ctx context.Context, lg Logger) Logger {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return lg
	}
	return &spanLogger{Logger: lg, span: span}
}

func (l *spanLogger) Debug(msg string, kv ...interface{}) {
	l.span.AddEvent(msg, trace.WithAttributes(kvToAttributes(kv)...))
	l.Logger.Debug(msg, kv...)
}

func (l *spanLogger) Info(msg string, kv ...interface{}) {
	l.span.AddEvent(msg, trace.WithAttributes(kvToAttributes(kv)...))
	l.Logger.Info(msg, kv...)
}

func (l *spanLogger) Warn(msg string, kv ...interface{}) {
	l.span.AddEvent(msg, trace.WithAttributes(kvToAttributes(kv)...))
	l.Logger.Warn(msg, kv...)
}

func (l *spanLogger) Error(msg string, kv ...interface{}) {
	l.span.AddEvent(msg, trace.WithAttributes(kvToAttributes(kv)...))
	l.span.SetStatus(codes.Error, msg)
	l.Logger.Error(msg, kv...)
}

func (l *spanLogger) With(key string, value interface{}) Logger {
	return &spanLogger{Logger: l.Logger.With(key, value), span: l.span}
}

func (l *spanLogger) NewSystem(name string) Logger {
	return &spanLogger{Logger: l.Logger.NewSystem(name), span: l.span}
}

func kvToAttributes(kv []interface{}) []attribute.KeyValue {
	if len(kv)%2 != 0 {
		kv = append(kv, "MISSING")
	}
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			attrs = append(attrs, attribute.String("invalidKeysAndValues", fmt.Sprint(kv[i:])))
			break
		}
		attrs = append(attrs, attribute.String(key, fmt.Sprint(kv[i+1])))
	}
	return attrs
}
