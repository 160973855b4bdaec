package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentTag(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})
	l.Info("snapshot applied", FieldRecords, 3)
	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "records=3") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentStorage).Debug("query")
	if !strings.Contains(buf.String(), "component=storage") {
		t.Fatalf("expected storage component, got %s", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected default logger")
	}
	want := Discard()
	if got := FromContext(WithContext(context.Background(), want)); got != want {
		t.Fatalf("expected stored logger")
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Component: ComponentApp, Output: &buf}))
	sl.LogError(context.Background(), "insert failed", errors.New("boom"), ComponentStorage, OpCreate, nil)
	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=boom", "operation=create", "component=storage"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestLogHTTPEndRedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Component: ComponentHTTP, Output: &buf}))
	req := httptest.NewRequest(http.MethodGet, "/api/stream?access_token=secret-token&x=1", nil)
	sl.LogHTTPEnd(context.Background(), req, http.StatusUnauthorized, 3, "10.0.0.1")
	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Fatalf("token leaked into access log: %s", out)
	}
	for _, want := range []string{"level=WARN", "status_code=401", "REDACTED"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
