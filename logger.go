package spatialgo

import (
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/spatialgo/index"
)

// Logger wraps slog.Logger with spatialgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithIndexType adds the active index type to the logger.
func (l *Logger) WithIndexType(t index.Type) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", t.String()),
	}
}

// WithID adds an item ID field to the logger.
func (l *Logger) WithID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(id string, err error) {
	if err != nil {
		l.Debug("insert rejected",
			"id", id,
			"error", err,
		)
	} else {
		l.Debug("insert completed",
			"id", id,
		)
	}
}

// LogSwitch logs a change of the active index.
func (l *Logger) LogSwitch(from, to index.Type, items int, reason string) {
	l.Info("index switched",
		"from", from.String(),
		"to", to.String(),
		"items", items,
		"reason", reason,
	)
}

// LogRebuild logs a repopulation of the active index.
func (l *Logger) LogRebuild(t index.Type, items int, took time.Duration, err error) {
	if err != nil {
		l.Error("rebuild failed",
			"index", t.String(),
			"items", items,
			"error", err,
		)
	} else {
		l.Debug("rebuild completed",
			"index", t.String(),
			"items", items,
			"duration", took,
		)
	}
}
