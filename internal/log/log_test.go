package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Debug("dropped")
	l.Infof("dropped %d", 1)
	if l.With("k", "v") != nil {
		t.Error("With on nil logger should stay nil")
	}
}

func TestNewWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelInfo)
	l.Debug("hidden")
	l.With("stage", "climb").Info("entered", "t", 5.0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "entered" || rec["stage"] != "climb" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewWritesFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	l := New("info", dir, &console)
	l.Warn("trim did not converge", "cost", 0.5)

	if !strings.Contains(console.String(), "trim did not converge") {
		t.Errorf("console missing record: %q", console.String())
	}
	data, err := os.ReadFile(l.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"cost":0.5`) {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	if l.Logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard should disable every level")
	}
}
