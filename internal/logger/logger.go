package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu         sync.RWMutex
	global     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	outputFile *os.File
)

type ctxKey struct{}

// LogLevel is the minimum level written by the global logger.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config controls where and how log lines are written.
type Config struct {
	Level LogLevel
	// OutputPath is a file path, or "" / "stdout" for stdout only.
	OutputPath string
	// Format is "json" or "text".
	Format string
}

// InitWithConfig replaces the global logger. A file output is mirrored to
// stdout and stays open until Close.
func InitWithConfig(config Config) error {
	var (
		output io.Writer = os.Stdout
		file   *os.File
	)
	if config.OutputPath != "" && config.OutputPath != "stdout" {
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		file = f
		output = io.MultiWriter(os.Stdout, f)
	}

	l := slog.New(newHandler(output, config))

	mu.Lock()
	prev := outputFile
	global, outputFile = l, file
	mu.Unlock()
	slog.SetDefault(l)

	if prev != nil {
		prev.Close()
	}
	return nil
}

func newHandler(w io.Writer, config Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: config.Level.slogLevel(), AddSource: true}
	if config.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
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

// String returns the level name as accepted by LOG_LEVEL.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Close flushes and closes the log file opened by InitWithConfig, if any.
func Close() error {
	mu.Lock()
	f := outputFile
	outputFile = nil
	mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// GetLogger returns the global logger.
func GetLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// NewContext returns ctx carrying a logger derived from the one already in
// ctx (or the global one) with fields attached. Background analysis started
// from a request keeps the request's fields.
func NewContext(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).With(fields...))
}

// FromContext returns the logger stored by NewContext, or the global logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return GetLogger()
}

func Debug(msg string, args ...any) { GetLogger().Debug(msg, args...) }

func Info(msg string, args ...any) { GetLogger().Info(msg, args...) }

func Warn(msg string, args ...any) { GetLogger().Warn(msg, args...) }

func Error(msg string, args ...any) { GetLogger().Error(msg, args...) }

// Warningf is for printf-style sources such as the gorm logger bridge.
func Warningf(format string, args ...any) {
	GetLogger().Warn(fmt.Sprintf(format, args...))
}

// Fatal logs at error level and exits the process.
func Fatal(msg string, args ...any) {
	GetLogger().Error(msg, args...)
	os.Exit(1)
}
