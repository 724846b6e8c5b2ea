// Package log provides structured logging for tabml on top of zerolog.
//
// Components obtain a named Logger from the global provider and log with
// alternating key/value pairs using the canonical keys declared in keys.go:
//
//	logger := log.GetLoggerWithName("pipeline")
//	logger.Info("Training started",
//		log.OperationKey, log.OperationFit,
//		log.SamplesKey, n,
//	)
//
// Command-line programs call SetupLogger (or Setup for a rotating file sink)
// once at start-up.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging interface used by every component.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLoggerWithName(name string) Logger
}

// Options configures the global logger.
type Options struct {
	Level string
	// File enables a size-rotated log file in addition to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

var (
	mu             sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(zerolog.InfoLevel)
	globalLogger                  = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// ToLogLevel parses a level name; unknown names map to info.
func ToLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetupLogger configures the global logger to write to stderr at level.
func SetupLogger(level string) {
	Setup(Options{Level: level})
}

// Setup configures the global logger from opts.
func Setup(opts Options) {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		})
	}

	lvl := ToLogLevel(opts.Level)
	base := zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	mu.Lock()
	defer mu.Unlock()
	globalLogger = base
	globalProvider = &zerologProvider{base: base}
}

// GetLogger returns the raw global zerolog logger for event-style logging.
func GetLogger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := globalLogger
	return &l
}

// GetLoggerWithName returns a named logger from the global provider.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	p := globalProvider
	mu.RUnlock()
	return p.GetLoggerWithName(name)
}

// SetProvider replaces the global provider, mainly for tests.
func SetProvider(p LoggerProvider) {
	mu.Lock()
	defer mu.Unlock()
	globalProvider = p
}

// LogError logs err at error level with its full cause chain.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	GetLogger().Error().Err(err).Msg(msg)
}
