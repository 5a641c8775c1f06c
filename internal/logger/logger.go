// Package logger builds the process-wide slog handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ju4n97/neurocalc/internal/env"
	"github.com/ju4n97/neurocalc/internal/xfs"
)

type options struct {
	console    io.Writer
	logFile    string
	level      slog.Level
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	logToFile  bool
}

// Option configures the logger.
type Option func(*options)

// WithLogToFile enables writing JSON logs to a rotating file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the log file path.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithRotation sets size, backup count and age limits of the log file.
func WithRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(o *options) {
		o.maxSizeMB = maxSizeMB
		o.maxBackups = maxBackups
		o.maxAgeDays = maxAgeDays
	}
}

// WithConsole replaces the console writer (stderr by default).
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// New builds a logger for environment e. Development logs are colored text, production
// logs are JSON. With file logging enabled, JSON records are also written to a rotated file.
func New(e env.Environment, opts ...Option) *slog.Logger {
	o := options{
		console:    os.Stderr,
		logFile:    "logs/neurocalc.log",
		level:      slog.LevelInfo,
		maxSizeMB:  10,
		maxBackups: 3,
		maxAgeDays: 28,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var console slog.Handler
	if e.IsProduction() {
		console = slog.NewJSONHandler(o.console, &slog.HandlerOptions{Level: o.level})
	} else {
		console = tint.NewHandler(o.console, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
		})
	}

	if !o.logToFile {
		return slog.New(console)
	}

	file := &lumberjack.Logger{
		Filename:   xfs.ExpandTilde(o.logFile),
		MaxSize:    o.maxSizeMB,
		MaxBackups: o.maxBackups,
		MaxAge:     o.maxAgeDays,
		Compress:   true,
	}

	return slog.New(fanout{
		console,
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.level}),
	})
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
