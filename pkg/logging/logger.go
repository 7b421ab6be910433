// Package logging configures the zerolog logger shared by every stage of a report run.
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
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// JSON switches from the human-readable console format to one JSON object per line.
	JSON bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns the configuration used by the CLI: info level, console format, stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		JSON:   false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForRun derives a logger tagged with both the component and the run ID,
// so lines from one invocation can be grepped out of a shared log.
func ForRun(component, runID string) zerolog.Logger {
	return log.With().Str("component", component).Str("run_id", runID).Logger()
}

// Log Level Guidelines:
//
// Debug: request URLs, page indexes, per-serial expansion of EoX records.
//
// Info: stage transitions, one line per completed batch, the final summary.
//
// Warn: a batch that failed and was recorded as not found, 429 responses
// honored via Retry-After, serials skipped as malformed.
//
// Error: fatal stage failures (config, auth, read, write).
//
// Context Fields:
//   - run_id: UUID of the current invocation
//   - stage: pipeline stage (config, read, auth, fetch, merge, write)
//   - batch: 1-based batch index
//   - batches: total number of batches
//   - serials: number of serials in a batch
//   - page: EoX result page
//   - status_code: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - path: input or output file
