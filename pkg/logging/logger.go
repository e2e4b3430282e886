// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
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
)

// Component names used in the "component" field.
const (
	ComponentClient     = "storefront-client"
	ComponentSession    = "session-cache"
	ComponentCart       = "cart"
	ComponentAuth       = "auth"
	ComponentPrefetch   = "prefetch"
	ComponentStorefront = "storefront"
	ComponentCLI        = "cli"
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
	zerolog.SetGlobalLevel(cfg.Level.Zerolog())

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// zerologLevels maps each LogLevel to its zerolog level.
var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// ParseLevel validates a configured level name. Matching ignores case and
// surrounding blanks; "warning" is accepted for warn and an empty name
// means info.
func ParseLevel(s string) (LogLevel, error) {
	name := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zerologLevels[name]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return name, nil
}

// Zerolog returns the zerolog level for l. Unknown levels map to info.
func (l LogLevel) Zerolog() zerolog.Level {
	if parsed, err := ParseLevel(string(l)); err == nil {
		return zerologLevels[parsed]
	}
	return zerolog.InfoLevel
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Session cache reads and background refreshes
//   - Request flow and failure classification
//   - Rejected filter records
//
// Info: Normal operation events
//   - Applied cart mutations
//   - Session confirmed absent, logout
//   - Prefetch summaries, CLI startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Stale data served after a failed refresh
//   - Retry attempts and exhausted retries
//   - Demo categories served while the API is unreachable
//
// Error: Error conditions requiring attention
//   - Durable store write failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting service
//   - cache: session cache name (auth, cart)
//   - endpoint: API endpoint template
//   - status: HTTP status code
//   - error_class: unreachable, unauthorized, not_found, server, unknown
//   - op, id: cart mutation and line or product id
//   - category_id: catalog category
