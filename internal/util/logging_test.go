package util

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerFromContextReturnsStoredLogger(t *testing.T) {
	logger := slog.Default().With("request_id", "req-123")
	ctx := ContextWithLogger(context.Background(), logger)
	if got := LoggerFromContext(ctx); got != logger {
		t.Fatal("expected the stored logger back")
	}
}

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Fatal("expected the default logger when none is stored")
	}
}
