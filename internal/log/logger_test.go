package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSetup(t *testing.T) {
	logger = nil
	once = *new(sync.Once)

	Setup("DEBUG", "json")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "text")
	l.Debug("hidden")
	l.Info("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "k=v") {
		t.Errorf("expected text handler output, got %q", out)
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	cases := []struct {
		l     *slog.Logger
		field string
		want  string
	}{
		{WithComponent("engine"), "component", "engine"},
		{WithEnv("env-1"), "env_id", "env-1"},
		{WithSession("127.0.0.1:5000"), "session", "127.0.0.1:5000"},
	}

	for _, c := range cases {
		buf.Reset()
		c.l.Info("hello")

		var out map[string]any
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("Failed to decode JSON: %v", err)
		}
		if out[c.field] != c.want {
			t.Errorf("Expected %s %q, got %v", c.field, c.want, out[c.field])
		}
		if out["msg"] != "hello" {
			t.Errorf("Expected msg 'hello', got %v", out["msg"])
		}
	}
}
