package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with contextual field helpers
type Logger struct {
	*slog.Logger
}

// New creates a new logger. Format "json" is meant for production;
// anything else gets the tint console handler.
func New(level, format string) *Logger {
	logLevel := parseLevel(level)

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithRunID adds run_id to logger context
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{Logger: l.With("run_id", runID)}
}

// WithStep adds the step name to logger context
func (l *Logger) WithStep(name string) *Logger {
	return &Logger{Logger: l.With("step", name)}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
