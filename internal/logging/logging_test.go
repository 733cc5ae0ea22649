package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerTo_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithStage(WithRequestID(NewLoggerTo(&buf, "info"), "req-1"), "zoom")
	logger.Debug("hidden")
	logger.Info("stage finished")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not a single JSON line: %q", buf.String())
	}
	if line["request_id"] != "req-1" || line["stage"] != "zoom" || line["msg"] != "stage finished" {
		t.Errorf("line = %v", line)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("sk-abcdefghijkl"); got != "sk-a...ijkl" {
		t.Errorf("SanitizeToken(long) = %q", got)
	}
}

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory")
	}
	got := SanitizePath(filepath.Join(home, ".reelsmith", "data.db"))
	want := "~" + string(filepath.Separator) + filepath.Join(".reelsmith", "data.db")
	if got != want {
		t.Errorf("SanitizePath() = %q, want %q", got, want)
	}
	if got := SanitizePath("/tmp/x"); got != "/tmp/x" && home != "/" {
		t.Errorf("SanitizePath(/tmp/x) = %q", got)
	}
}
