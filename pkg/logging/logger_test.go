package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		log   func(zerolog.Logger, string)
	}{
		{"debug_level", LevelDebug, func(l zerolog.Logger, m string) { l.Debug().Msg(m) }},
		{"info_level", LevelInfo, func(l zerolog.Logger, m string) { l.Info().Msg(m) }},
		{"warn_level", LevelWarn, func(l zerolog.Logger, m string) { l.Warn().Msg(m) }},
		{"error_level", LevelError, func(l zerolog.Logger, m string) { l.Error().Msg(m) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.log(logger, "retrieval finished")

			if !strings.Contains(buf.String(), "retrieval finished") {
				t.Errorf("Expected output to contain message, got %q", buf.String())
			}
		})
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("query", "pencil").Msg("Retrieval succeeded")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("Expected console output, got JSON: %q", output)
	}
	if !strings.Contains(output, "Retrieval succeeded") || !strings.Contains(output, "pencil") {
		t.Errorf("Expected message and field in console output, got %q", output)
	}
}

func TestSetup_Disabled(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDisabled, Output: buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger.Error().Msg("should not appear")

	if buf.Len() != 0 {
		t.Errorf("Expected no output when disabled, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"off", zerolog.Disabled},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ParseLevel(tt.input); result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger(ComponentClient)
	logger.Info().Int("listings", 45).Msg("Retrieval succeeded")

	output := buf.String()
	if !strings.Contains(output, `"component":"tutti-client"`) {
		t.Errorf("Expected component field, got %q", output)
	}
	if !strings.Contains(output, `"listings":45`) {
		t.Errorf("Expected listings field, got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger(ComponentPagination)

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be included at Warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be included at Warn level")
	}
}
