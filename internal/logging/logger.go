package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the name of the log file created inside the log directory.
const LogFileName = "debug.log"

// Options configures a Logger.
type Options struct {
	// Level is one of DEBUG, INFO, WARN, ERROR. Unknown values mean INFO.
	Level string
	// Rotation controls size based rotation of the log file.
	Rotation RotationConfig
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	writer *RotatingWriter
	attrs  []slog.Attr
}

// NewLogger creates a Logger that writes JSON entries to {dir}/debug.log.
// If dir is empty, logs are written to stderr.
func NewLogger(dir string, opts Options) (*Logger, error) {
	var out io.Writer = os.Stderr
	var rw *RotatingWriter

	if dir != "" {
		var err error
		rw, err = NewRotatingWriter(filepath.Join(dir, LogFileName), opts.Rotation)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = rw
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	return &Logger{
		logger: slog.New(handler),
		writer: rw,
	}, nil
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithExperiment returns a child Logger tagged with the experiment index and ID.
func (l *Logger) WithExperiment(index int, id string) *Logger {
	return l.withAttrs(slog.Int("experiment_index", index), slog.String("experiment_id", id))
}

// WithIteration returns a child Logger tagged with an iteration number.
func (l *Logger) WithIteration(iteration int) *Logger {
	return l.withAttrs(slog.Int("iteration", iteration))
}

// WithChannel returns a child Logger tagged with a mailbox channel.
func (l *Logger) WithChannel(channel string) *Logger {
	return l.withAttrs(slog.String("channel", channel))
}

// WithCommand returns a child Logger tagged with the entry point name.
func (l *Logger) WithCommand(name string) *Logger {
	return l.withAttrs(slog.String("command", name))
}

// With returns a child Logger with arbitrary key-value attributes.
// Keys and values are provided as alternating arguments; non-string keys
// are skipped.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return l.withAttrs(attrs...)
}

func (l *Logger) withAttrs(attrs ...slog.Attr) *Logger {
	merged := make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	merged = append(merged, l.attrs...)
	merged = append(merged, attrs...)
	return &Logger{
		logger: l.logger,
		writer: l.writer,
		attrs:  merged,
	}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	all := make([]any, 0, len(l.attrs)+len(args))
	for _, attr := range l.attrs {
		all = append(all, attr)
	}
	all = append(all, args...)
	l.logger.Log(context.Background(), level, msg, all...)
}

// Close flushes and closes the log file. No-op for stderr and nop loggers.
func (l *Logger) Close() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

// NopLogger returns a Logger that discards all log output.
// Useful for testing or when logging is disabled.
func NopLogger() *Logger {
	return &Logger{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// ParseLevel normalizes a level string, returning LevelInfo if unknown.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
