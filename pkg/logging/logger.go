// Package logging configures zerolog for the tutti client and proxy.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled silences all output (library embedding, tests).
	LevelDisabled LogLevel = "disabled"
)

// Component names attached to every log line as the "component" field.
const (
	ComponentClient     = "tutti-client"
	ComponentPagination = "batch-fetcher"
	ComponentHistory    = "search-history"
	ComponentProxy      = "tutti-proxy"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request detail
//   - Session handshake result
//   - Page request offset and correlation hash
//   - Batch fan-out (total count, pages attempted)
//
// Info: one line per retrieval call
//   - Retrieval succeeded (query, listing count, duration)
//   - Proxy startup/shutdown
//
// Warn: a retrieval failed or a side channel degraded
//   - Retrieval failed (error class)
//   - CSRF cookie missing after handshake
//   - Query API returned errors
//   - Search history write failed
//
// Error: the process cannot do its job
//   - Handshake transport failure
//   - Configuration errors
//
// Context Fields:
//   - query: search text
//   - offset: page offset
//   - listings: number of listings returned
//   - total_count: server-reported result count
//   - pages: number of pages attempted
//   - duration: call duration
//   - error_class: request, timeout, csrf_token or parse
