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

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Tee receives a copy of every log line when set.
	Tee io.Writer

	// RunID is attached to every line as the "run_id" field when set.
	RunID string
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
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var output io.Writer = out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out}
	}
	if cfg.Tee != nil {
		output = zerolog.MultiLevelWriter(output, cfg.Tee)
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.RunID != "" {
		ctx = ctx.Str("run_id", cfg.RunID)
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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

// NewRunLog returns a logger writing plain, uncolored lines to w.
// It backs the human-readable run log kept next to the job output.
func NewRunLog(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05",
	}).With().Timestamp().Logger()
}

// ProgressBar renders "N done out of M, P% done [███░░]".
func ProgressBar(done, total, width int) string {
	if width <= 0 {
		width = 10
	}
	pct := 1.0
	if total > 0 {
		pct = float64(done) / float64(total)
	}
	if pct > 1 {
		pct = 1
	}
	full := int(pct * float64(width))
	return fmt.Sprintf("%d done out of %d, %4.1f%% done [%s%s]",
		done, total, pct*100,
		strings.Repeat("█", full), strings.Repeat("░", width-full))
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Fetch attempts (url, attempt, attempts left)
//   - Response cache hit/miss
//   - Storage cache hits (artifact already on disk)
//
// Info: Normal operation events
//   - Unit/project/series handling
//   - Documents saved, results found
//   - Progress lines
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Skipped items (document, output results, country slice)
//   - Missing dimension keys in observations
//   - Response cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Fatal index fetch failures
//   - Resume target never reached
//   - Configuration errors
//
// Context Fields:
//   - url: requested URL
//   - status: HTTP status code
//   - error_class: transient, http, other
//   - attempt: attempt number
//   - unit, project, output: UNDP identifiers
//   - series, country: SDG identifiers
