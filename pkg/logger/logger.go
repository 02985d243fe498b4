package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Leveled logger used by the auth service, backed by log/slog.
// Text output in development, JSON in production.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Fields are structured attributes attached to a log line.
type Fields map[string]any

var (
	mu      sync.RWMutex
	out     io.Writer = os.Stdout
	level   Level     = LevelInfo
	jsonOut bool
	levelV  = new(slog.LevelVar)
	logger  = newSlog()
)

func newSlog() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelV}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	case "fatal":
		level = LevelFatal
	default:
		level = LevelInfo
	}
	levelV.Set(toSlog(level))
}

// Configure selects the output format. production switches to JSON lines.
func Configure(w io.Writer, production bool) {
	mu.Lock()
	defer mu.Unlock()
	if w != nil {
		out = w
	}
	jsonOut = production
	logger = newSlog()
	slog.SetDefault(logger)
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError, LevelFatal:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func logf(l Level, format string, v ...interface{}) {
	if !shouldLog(l) {
		return
	}
	current().Log(context.Background(), toSlog(l), fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }

func Fatalf(format string, v ...interface{}) {
	current().Error(fmt.Sprintf(format, v...), "fatal", true)
	os.Exit(1)
}

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	if !shouldLog(LevelInfo) {
		return
	}
	current().Info(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// Entry is a logger with attached fields.
type Entry struct {
	l *slog.Logger
}

// With returns an Entry that adds fields to every line.
func With(fields Fields) *Entry {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Entry{l: current().With(args...)}
}

func (e *Entry) Infof(format string, v ...interface{}) {
	if shouldLog(LevelInfo) {
		e.l.Info(fmt.Sprintf(format, v...))
	}
}

func (e *Entry) Warnf(format string, v ...interface{}) {
	if shouldLog(LevelWarn) {
		e.l.Warn(fmt.Sprintf(format, v...))
	}
}

func (e *Entry) Errorf(format string, v ...interface{}) {
	if shouldLog(LevelError) {
		e.l.Error(fmt.Sprintf(format, v...))
	}
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
