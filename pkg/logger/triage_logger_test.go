package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, Service: "triage-api"})

	l.Debug("dropped")
	l.WithField("user", "+62811").WithError(errors.New("redis down")).Warn("append failed for %s", "history")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"service": "triage-api",
		"level":   "warn",
		"message": "append failed for history",
		"user":    "+62811",
		"error":   "redis down",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	cl := New(Config{Output: &buf}).Component("dispatcher")
	cl.Info().Msg("scan")

	if !strings.Contains(buf.String(), `"component":"dispatcher"`) {
		t.Errorf("entry = %s", buf.String())
	}
}
