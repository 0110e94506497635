package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/billm/baaaht/webbridge/internal/config"
)

// Level represents the log level
type Level slog.Level

const (
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

// String returns the string representation of the log level
func (l Level) String() string {
	return slog.Level(l).String()
}

// Logger wraps slog.Logger with a dynamically adjustable level
type Logger struct {
	logger *slog.Logger
	level  *slog.LevelVar
	closer io.Closer // set only on the root logger when writing to a file
}

// New creates a new logger with the specified configuration
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var writer io.Writer
	var closer io.Closer
	switch cfg.Output {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
		closer = file
	}

	l, err := NewWithWriter(writer, cfg.Format, level)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	l.closer = closer
	return l, nil
}

// NewWithWriter creates a logger writing to w in the given format
func NewWithWriter(w io.Writer, format string, level Level) (*Logger, error) {
	lv := new(slog.LevelVar)
	lv.Set(slog.Level(level))
	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}

	return &Logger{
		logger: slog.New(handler),
		level:  lv,
	}, nil
}

// NewDefault creates a new logger with default settings
func NewDefault() (*Logger, error) {
	return New(config.DefaultLoggingConfig())
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	l, _ := NewWithWriter(io.Discard, "text", LevelError)
	return l
}

// ParseLevel converts a string log level to a Level
func ParseLevel(level string) (Level, error) {
	switch level {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// With returns a derived logger with additional key-value pairs.
// Derived loggers share the level with their parent and must not be closed.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		logger: l.logger.With(args...),
		level:  l.level,
	}
}

// WithGroup returns a derived logger with a group prefix
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		logger: l.logger.WithGroup(name),
		level:  l.level,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// SetLevel changes the log level for this logger and every logger derived from it
func (l *Logger) SetLevel(level Level) {
	l.level.Set(slog.Level(level))
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	return Level(l.level.Level())
}

// Enabled returns true if logging is enabled for the given level
func (l *Logger) Enabled(level Level) bool {
	return level >= l.GetLevel()
}

// Slog exposes the underlying slog.Logger for libraries that accept one
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// String returns a string representation of the logger
func (l *Logger) String() string {
	return fmt.Sprintf("Logger{Level: %s}", l.GetLevel())
}

// Close closes the log file, if any. Only the root logger owns it.
func (l *Logger) Close() error {
	if l.closer != nil {
		if err := l.closer.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		l.closer = nil
	}
	return nil
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// Global returns the process logger, creating a default one on first use
func Global() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		l, err := NewDefault()
		if err != nil {
			l, _ = NewWithWriter(os.Stderr, "text", LevelInfo)
		}
		globalLogger = l
	}
	return globalLogger
}

// SetGlobal replaces the process logger
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}
