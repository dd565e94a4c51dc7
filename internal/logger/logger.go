package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Constants for logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Environments
const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// NewLogger creates logger with the specified format and level that writes to w
func NewLogger(w io.Writer, format string, level string) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: replace,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return &slogLogger{logger: slog.New(handler)}, nil
}

// New creates logger for environment: text for development, json for production
func New(env string, level string, w io.Writer) (Logger, error) {
	switch strings.ToLower(env) {
	case EnvDevelopment:
		return NewLogger(w, FormatText, level)
	case EnvProduction:
		return NewLogger(w, FormatJSON, level)
	default:
		return nil, fmt.Errorf("unknown environment %q", env)
	}
}

// NewTextLogger creates a new text logger with the specified level, writes to stderr
func NewTextLogger(level string) (Logger, error) {
	return NewLogger(os.Stderr, FormatText, level)
}

// NewJSONLogger creates a new JSON logger with the specified level, writes to stderr
func NewJSONLogger(level string) (Logger, error) {
	return NewLogger(os.Stderr, FormatJSON, level)
}

// NewNoOpLogger creates a logger that discards all log messages
func NewNoOpLogger() Logger {
	logger := slog.New(slog.DiscardHandler)
	return &slogLogger{logger: logger}
}

// NewFileWriter returns size rotated log file writer
// Caller has to close it on shutdown
func NewFileWriter(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	}
}
