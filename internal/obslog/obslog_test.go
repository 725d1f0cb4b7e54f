package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("Info") {
		t.Error("Info should be valid")
	}
	if ValidLevel("verbose") {
		t.Error("verbose should not be valid")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("pondering", zap.String("move", "e5"))
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if entry["msg"] != "pondering" || entry["move"] != "e5" || entry["level"] != "debug" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info entry written at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, " | WARN | ") {
		t.Errorf("missing legacy warn entry: %q", out)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chessponder.log")
	var buf bytes.Buffer
	logger, err := newLogger(Config{Format: "console", File: path}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("to both")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to both") || !strings.Contains(buf.String(), "to both") {
		t.Errorf("entry missing: file %q, stderr %q", data, buf.String())
	}
}
