package tlog

import (
	"context"
	"testing"
)

func TestWithAndNewSystemDoNotPanic(t *testing.T) {
	lg := New()
	scoped := lg.NewSystem("agent").With("did", "did:key:z123")
	scoped.Info("hello", "foo", "bar")
	scoped.Debug("debug line")
	scoped.Warn("warn line")
	scoped.Error("error line")
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	if FromContext(ctx) == nil {
		t.Fatal("expected logger from context")
	}
}

func TestNewHonorsLogFormat(t *testing.T) {
	for _, format := range []string{"", "console", "logfmt", "json"} {
		t.Setenv("TAP_LOG_FORMAT", format)
		lg := New()
		lg.Info("hello", "format", format)
	}
}

func TestWithSpanPassesThroughWithoutARecordingSpan(t *testing.T) {
	lg := New()
	// The background context carries no span, so WithSpan must return lg
	// itself rather than wrapping it.
	if got := WithSpan(context.Background(), lg); got != lg {
		t.Error("expected WithSpan to pass through the logger unchanged when ctx has no recording span")
	}
}
