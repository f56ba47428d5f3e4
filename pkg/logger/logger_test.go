package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLogger_ValidLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			logger := GetLogger()
			if logger == nil {
				t.Fatal("GetLogger() returned nil")
			}
		})
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger("invalid")
	if err == nil {
		t.Error("expected error for invalid log level, got nil")
	}
}

func TestGetLogger_BeforeInit(t *testing.T) {
	// globalLoggerをリセット
	globalLogger = nil

	logger := GetLogger()
	if logger == nil {
		t.Error("GetLogger() should return default logger when not initialized")
	}

	// デフォルトロガーが返されることを確認
	if logger != slog.Default() {
		t.Error("GetLogger() should return slog.Default() when not initialized")
	}
}

func TestGetLogger_AfterInit(t *testing.T) {
	err := InitLogger("info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger := GetLogger()
	if logger == nil {
		t.Error("GetLogger() returned nil after initialization")
	}

	if logger != globalLogger {
		t.Error("GetLogger() should return the initialized logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInitLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := InitLoggerWithWriter(&buf, "warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { globalLogger = nil }()

	GetLogger().Info("hidden")
	GetLogger().Warn("shown", "action", "turbo")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "action=turbo") {
		t.Errorf("warn message missing: %q", out)
	}
}
