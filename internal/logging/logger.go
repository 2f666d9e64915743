package logging

import (
	"context"
	"log"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(LevelInfo))
}

// ParseLevel maps LOG_LEVEL values; unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel drops every line below lvl.
func SetLevel(lvl Level) {
	minLevel.Store(int32(lvl))
}

func enabled(lvl Level) bool {
	return int32(lvl) >= minLevel.Load()
}

// Logger provides structured logging for a component
type Logger struct {
	component string
	id        string
}

// New creates a logger for component
func New(component string) *Logger {
	return &Logger{component: component, id: "-"}
}

type requestIDKey struct{}

// WithRequestID stores rid for FromContext and RequestID.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestID returns the request ID of ctx. Gin contexts expose it under the
// plain "request_id" key.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok && rid != "" {
		return rid
	}
	if rid, ok := ctx.Value("request_id").(string); ok {
		return rid
	}
	return ""
}

// FromContext creates a logger carrying the request ID set by middleware
func FromContext(ctx context.Context, component string) *Logger {
	return New(component).With(RequestID(ctx))
}

// With returns a copy of the logger tagged with id (a workspace or request)
func (l *Logger) With(id string) *Logger {
	if id == "" {
		id = "-"
	}
	return &Logger{component: l.component, id: id}
}

func (l *Logger) printf(lvl Level, tag, operation, format string, args ...interface{}) {
	if !enabled(lvl) {
		return
	}
	log.Printf("["+tag+"] component=%s id=%s operation=%s "+format,
		append([]interface{}{l.component, l.id, operation}, args...)...)
}

// LogError logs an error with context
func (l *Logger) LogError(operation string, err error) {
	l.printf(LevelError, "error", operation, "error=%v", err)
}

// LogErrorf logs a formatted error with context
func (l *Logger) LogErrorf(operation string, format string, args ...interface{}) {
	l.printf(LevelError, "error", operation, format, args...)
}

// LogInfo logs an info message with context
func (l *Logger) LogInfo(operation string, message string) {
	l.printf(LevelInfo, "info", operation, "message=%s", message)
}

// LogInfof logs a formatted info message with context
func (l *Logger) LogInfof(operation string, format string, args ...interface{}) {
	l.printf(LevelInfo, "info", operation, format, args...)
}

// LogWarn logs a warning with context
func (l *Logger) LogWarn(operation string, message string) {
	l.printf(LevelWarn, "warn", operation, "message=%s", message)
}

// LogWarnf logs a formatted warning with context
func (l *Logger) LogWarnf(operation string, format string, args ...interface{}) {
	l.printf(LevelWarn, "warn", operation, format, args...)
}

func (l *Logger) LogDebugf(operation string, format string, args ...interface{}) {
	l.printf(LevelDebug, "debug", operation, format, args...)
}
