package annforest

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with annforest-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithKind adds an index variant field to the logger.
func (l *Logger) WithKind(kind string) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", kind),
	}
}

// WithStrategy adds a query strategy field to the logger.
func (l *Logger) WithStrategy(strategy Strategy) *Logger {
	return &Logger{
		Logger: l.Logger.With("strategy", strategy.String()),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// LogBuild logs an ensemble build.
func (l *Logger) LogBuild(ctx context.Context, members, points int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ensemble build failed",
			"members", members,
			"points", points,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ensemble built",
			"members", members,
			"points", points,
			"elapsed", elapsed,
		)
	}
}

// LogGroundTruth logs a ground-truth table build.
func (l *Logger) LogGroundTruth(ctx context.Context, rows, k int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ground truth build failed",
			"rows", rows,
			"k", k,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ground truth built",
			"rows", rows,
			"k", k,
			"elapsed", elapsed,
		)
	}
}

// LogSearch logs a query.
func (l *Logger) LogSearch(ctx context.Context, strategy Strategy, k, candidates int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"strategy", strategy.String(),
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"strategy", strategy.String(),
			"k", k,
			"candidates", candidates,
		)
	}
}

// LogSnapshot logs a snapshot load or save.
func (l *Logger) LogSnapshot(ctx context.Context, op, key string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"key", key,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op,
			"key", key,
		)
	}
}
