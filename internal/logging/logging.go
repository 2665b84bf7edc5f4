// Package logging provides structured logging capabilities using slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// global logger instances, initialized in Init()
var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	loggerMu            sync.RWMutex
)

// currentLogLevel stores the dynamic level for all loggers
var (
	currentLogLevel = new(slog.LevelVar)
	initOnce        sync.Once
	initialized     bool
)

// defaultReplaceAttr provides common attribute formatting for all loggers.
// It formats time to second precision and truncates floats to 2 decimal places.
func defaultReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	if a.Value.Kind() == slog.KindFloat64 {
		truncatedVal := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncatedVal)
	}
	return a
}

// Init initializes the global loggers. It sets up both a structured (JSON)
// logger writing to a rotating file under logDir and a human-readable (Text)
// logger writing to the console.
func Init(logDir string, debug bool) {
	initOnce.Do(func() {
		if debug {
			currentLogLevel.Set(slog.LevelDebug)
		} else {
			currentLogLevel.Set(slog.LevelInfo)
		}

		var structuredOut io.Writer = os.Stderr
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "failed to create log directory %s: %v\n", logDir, err)
			} else {
				structuredOut = &lumberjack.Logger{
					Filename:   filepath.Join(logDir, "hoover.log"),
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     30, // days
					Compress:   true,
				}
			}
		}

		structuredHandler := slog.NewJSONHandler(structuredOut, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})

		humanReadableHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})

		loggerMu.Lock()
		structuredLogger = slog.New(structuredHandler)
		humanReadableLogger = slog.New(humanReadableHandler)
		loggerMu.Unlock()

		slog.SetDefault(structuredLogger)
		initialized = true
	})
}

// IsInitialized returns true if the logging system has been initialized
func IsInitialized() bool {
	return initialized
}

// SetLevel changes the logging level for all initialized loggers.
func SetLevel(level slog.Level) {
	currentLogLevel.Set(level)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns the slog default if Init() has not been called.
func Structured() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if structuredLogger == nil {
		return slog.Default()
	}
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
func HumanReadable() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if humanReadableLogger == nil {
		return slog.Default()
	}
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// All log records emitted through the returned logger carry the service name.
func ForService(serviceName string) *slog.Logger {
	return Structured().With("service", serviceName)
}

// NewFileLogger creates a new slog.Logger instance configured to write JSON
// logs to the given file with rotation. It returns the logger and a close
// function releasing the underlying writer.
func NewFileLogger(filePath, serviceName string, levelVar *slog.LevelVar) (*slog.Logger, func() error, error) {
	if filePath == "" {
		return nil, nil, fmt.Errorf("log file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory for %s: %w", filePath, err)
	}

	writer := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}

	if levelVar == nil {
		levelVar = currentLogLevel
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:       levelVar,
		ReplaceAttr: defaultReplaceAttr,
	})

	logger := slog.New(handler).With("service", serviceName)
	return logger, writer.Close, nil
}
