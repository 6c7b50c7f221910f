package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu           sync.RWMutex
	globalLogger = slog.New(&silentHandler{})
	errorLogger  = newHandlerLogger(os.Stderr, slog.LevelError)
	verboseMode  bool
)

// Init initializes the global logger with verbose mode setting. Verbose
// output is JSON on stderr with secrets redacted; otherwise only errors print.
func Init(verbose bool) {
	InitWithWriter(os.Stderr, verbose)
}

// InitWithWriter is Init with an explicit destination, used by tests.
func InitWithWriter(w io.Writer, verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	verboseMode = verbose
	errorLogger = newHandlerLogger(w, slog.LevelError)
	if verbose {
		globalLogger = newHandlerLogger(w, slog.LevelDebug)
	} else {
		globalLogger = slog.New(&silentHandler{})
	}
	slog.SetDefault(globalLogger)
}

func newHandlerLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}))
}

// silentHandler discards all log messages when verbose mode is disabled
type silentHandler struct{}

func (h *silentHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return false
}

func (h *silentHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}

func (h *silentHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *silentHandler) WithGroup(_ string) slog.Handler {
	return h
}

func current() (*slog.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger, verboseMode
}

// Debug logs debug messages only in verbose mode
func Debug(msg string, args ...any) {
	if l, verbose := current(); verbose {
		l.Debug(msg, args...)
	}
}

// Info logs info messages only in verbose mode
func Info(msg string, args ...any) {
	if l, verbose := current(); verbose {
		l.Info(msg, args...)
	}
}

// Warn logs warning messages only in verbose mode
func Warn(msg string, args ...any) {
	if l, verbose := current(); verbose {
		l.Warn(msg, args...)
	}
}

// Error always logs error messages regardless of verbose mode
func Error(msg string, args ...any) {
	mu.RLock()
	l := errorLogger
	if verboseMode {
		l = globalLogger
	}
	mu.RUnlock()
	l.Error(msg, args...)
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verboseMode
}
