package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	Set(nil)
	if L().Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger should not be enabled at any level")
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	Set(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer Set(nil)

	L().Info("adapter selected", "name", "test")
	if !strings.Contains(buf.String(), "adapter selected") {
		t.Errorf("log output = %q, want message", buf.String())
	}
}

func TestNopHandlerDerivations(t *testing.T) {
	l := Nop().With("k", "v").WithGroup("g")
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("derived nop logger should stay disabled")
	}
}
