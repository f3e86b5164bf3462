package vlogdb

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vlogdb-specific fields.
// This keeps field names consistent across operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithTable adds a table field to the logger.
func (l *Logger) WithTable(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", name),
	}
}

// WithKey adds a key field to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// LogSet logs a set operation.
func (l *Logger) LogSet(ctx context.Context, key string, offset, length uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "set failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "set completed",
			"key", key,
			"offset", offset,
			"length", length,
		)
	}
}

// LogGet logs a get operation.
func (l *Logger) LogGet(ctx context.Context, key string, found bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "get failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "get completed",
			"key", key,
			"found", found,
		)
	}
}

// LogFlush logs an append buffer flush.
func (l *Logger) LogFlush(ctx context.Context, key, pointerKey string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append flush failed",
			"key", key,
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "append flush completed",
			"key", key,
			"pointer_key", pointerKey,
			"count", count,
		)
	}
}

// LogReset logs a destructive table delete.
func (l *Logger) LogReset(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "table delete failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "table deleted")
	}
}

// LogSnapshot logs a snapshot or restore.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, keys int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"snapshot", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, op+" completed",
			"snapshot", name,
			"keys", keys,
		)
	}
}

// LogPartialWrite logs payload bytes that reached the log while their
// metadata did not reach the index. Those bytes stay orphaned.
func (l *Logger) LogPartialWrite(ctx context.Context, key string, offset, length uint64, err error) {
	l.ErrorContext(ctx, "partial write: payload orphaned in value log",
		"key", key,
		"offset", offset,
		"length", length,
		"error", err,
	)
}
