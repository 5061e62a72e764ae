package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected LogLevel
	}{
		{"Debug", "debug", LevelDebug},
		{"Info", "info", LevelInfo},
		{"Warn", "warn", LevelWarn},
		{"Warning alias", "warning", LevelWarn},
		{"Error", "error", LevelError},
		{"Case insensitive", "DEBUG", LevelDebug},
		{"Whitespace", "  error ", LevelError},
		{"Unknown defaults to info", "verbose", LevelInfo},
		{"Empty defaults to info", "", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.value); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func captureOutput(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()
	previous := GetLevel()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(previous)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, LevelWarn)

	Debug("debug line")
	Info("info line")
	Warn("warn line %d", 1)
	Error("error line %s", "x")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("messages below warn should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn line 1") {
		t.Errorf("expected warn line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] error line x") {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestNamedLogger(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	log := Named("probe")
	log.Debug("running %s", "ffprobe")
	log.Warn("bad tag")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] (probe) running ffprobe") {
		t.Errorf("expected prefixed debug line, got %q", out)
	}
	if !strings.Contains(out, "[WARN] (probe) bad tag") {
		t.Errorf("expected prefixed warn line, got %q", out)
	}
}

func TestSetOutputDisablesColorForBuffers(t *testing.T) {
	buf := captureOutput(t, LevelInfo)
	Info("plain")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no ANSI escapes when writing to a buffer, got %q", buf.String())
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
