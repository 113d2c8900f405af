// Package logger provides component-tagged structured logging for pennybot.
// Every log line carries a component name so the webhook, task, and dispatch
// paths can be followed independently in one stream.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log = newZap("info", "console")
)

// Init replaces the process logger. Call once at startup, before any
// goroutines start logging. level is one of debug/info/warn/error,
// format is "console" or "json".
func Init(level, format string) {
	mu.Lock()
	defer mu.Unlock()
	log = newZap(level, format)
}

// Sync flushes buffered log entries. Safe to call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	log.Sync()
}

func newZap(level, format string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func fieldsOf(component string, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string) {
	current().Debug(msg, zap.String("component", component))
}

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	current().Debug(msg, fieldsOf(component, fields)...)
}

// InfoC logs an info message for a component.
func InfoC(component, msg string) {
	current().Info(msg, zap.String("component", component))
}

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	current().Info(msg, fieldsOf(component, fields)...)
}

// WarnC logs a warning for a component.
func WarnC(component, msg string) {
	current().Warn(msg, zap.String("component", component))
}

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	current().Warn(msg, fieldsOf(component, fields)...)
}

// ErrorC logs an error message for a component.
func ErrorC(component, msg string) {
	current().Error(msg, zap.String("component", component))
}

// ErrorCF logs an error message with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	current().Error(msg, fieldsOf(component, fields)...)
}
