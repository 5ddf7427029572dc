// Package logging owns the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
)

// Logger returns the process logger. Until Init runs it writes to stdout at
// the LOG_LEVEL environment level.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = New(os.Stdout, os.Getenv("LOG_LEVEL"))
	}
	return logger
}

// Init replaces the process logger; call it before building subsystems so
// their component loggers inherit w.
func Init(w io.Writer, level string) *slog.Logger {
	return SetDefault(New(w, level))
}

// SetDefault installs l as the process logger and returns it.
func SetDefault(l *slog.Logger) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	return l
}

// New builds a text logger writing to w at the named level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

// Component returns a child logger tagged with a component attribute.
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}

// Discard is a logger that drops every record; tests use it to keep output quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
