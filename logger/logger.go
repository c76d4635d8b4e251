// Package logger holds the process-wide structured logger. Call Init
// once at startup; the package-level helpers are safe before Init and
// log nowhere until it runs.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Init builds the process logger. Level accepts zap level names
// ("debug", "info", "warn", "error"); unknown values fall back to info.
// jsonOut selects the production JSON encoder; false gives the console
// encoder for local development.
func Init(level string, jsonOut bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = ""
	if !jsonOut {
		cfg.Encoding = "console"
	}

	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	log = built
	return nil
}

// L returns the underlying zap logger, for callers that need typed
// child loggers.
func L() *zap.Logger {
	return log
}

// Sync flushes buffered entries. Best effort on shutdown.
func Sync() {
	_ = log.Sync()
}

// Debug logs at debug level.
func Debug(msg string, fields ...zap.Field) { log.Debug(msg, fields...) }

// Info logs at info level.
func Info(msg string, fields ...zap.Field) { log.Info(msg, fields...) }

// Warn logs at warn level.
func Warn(msg string, fields ...zap.Field) { log.Warn(msg, fields...) }

// Error logs at error level.
func Error(msg string, fields ...zap.Field) { log.Error(msg, fields...) }

// Fatal logs and exits.
func Fatal(msg string, fields ...zap.Field) { log.Fatal(msg, fields...) }
