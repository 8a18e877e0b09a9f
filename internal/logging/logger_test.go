package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewActionLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	al := NewActionLogger(dir, "info")

	// At info level, action logger should be nil
	if al != nil {
		t.Error("expected nil ActionLogger at info level")
	}

	// Nil logger should still be safe to use
	al.Log(map[string]any{"action": "SignUp"})

	path := filepath.Join(dir, "actions.jsonl")
	if _, err := os.Stat(path); err == nil {
		t.Error("actions.jsonl should not exist at info level")
	}
}

func TestNewActionLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	al := NewActionLogger(dir, "debug")
	defer al.Close()

	al.Log(map[string]any{"action": "CreatePost", "user_id": float64(3)})

	path := filepath.Join(dir, "actions.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read actions.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}

	if entry["action"] != "CreatePost" {
		t.Errorf("action = %v, want CreatePost", entry["action"])
	}
	if entry["user_id"] != float64(3) {
		t.Errorf("user_id = %v, want 3", entry["user_id"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in action log entry")
	}
}

func TestNewActionLogger_MultipleWrites(t *testing.T) {
	dir := t.TempDir()
	al := NewActionLogger(dir, "debug")
	defer al.Close()

	al.Log(map[string]any{"action": "Like"})
	al.Log(map[string]any{"action": "Unlike"})

	path := filepath.Join(dir, "actions.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read actions.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}

	var first, second map[string]any
	json.Unmarshal([]byte(lines[0]), &first)
	json.Unmarshal([]byte(lines[1]), &second)

	if first["action"] != "Like" {
		t.Errorf("first action = %v, want Like", first["action"])
	}
	if second["action"] != "Unlike" {
		t.Errorf("second action = %v, want Unlike", second["action"])
	}
}

func TestActionLogger_NilSafety(t *testing.T) {
	var al *ActionLogger
	al.Log(map[string]any{"action": "should_not_panic"})
	al.Close()
}

func TestActionLogger_DoesNotMutateCallerMap(t *testing.T) {
	dir := t.TempDir()
	al := NewActionLogger(dir, "debug")
	defer al.Close()

	event := map[string]any{"action": "Trend"}
	al.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
}

func TestActionLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	al := NewActionLogger(dir, "debug")

	al.Log(map[string]any{"action": "before_close"})
	al.Close()

	// Should be a no-op, not panic or error
	al.Log(map[string]any{"action": "after_close"})
}

func TestNewActionLogger_CreatesDir(t *testing.T) {
	base := t.TempDir()
	nestedDir := filepath.Join(base, "sub", "dir")

	al := NewActionLogger(nestedDir, "debug")
	if al == nil {
		t.Fatal("expected non-nil ActionLogger when dir needs creation")
	}
	defer al.Close()

	al.Log(map[string]any{"action": "dir_create_test"})

	path := filepath.Join(nestedDir, "actions.jsonl")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("actions.jsonl should exist after dir creation: %v", err)
	}
}
