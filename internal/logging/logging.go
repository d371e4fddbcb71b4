// Package logging builds the slog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Levels lists the accepted level names, lowest first.
var Levels = []string{"debug", "info", "warn", "error", "off"}

// ParseLevel maps a level name (case-insensitive) to a slog level. "off"
// reports on=false.
func ParseLevel(s string) (level slog.Level, on bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "warn":
		return slog.LevelWarn, true, nil
	case "error":
		return slog.LevelError, true, nil
	case "off":
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("unknown log level %q (want %s)", s, strings.Join(Levels, ", "))
}

// New returns a text logger writing to w at level. An "off" level, or a
// nil writer, discards everything.
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, on, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if !on || w == nil {
		return Discard(), nil
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Open is New writing to the file at path (appending). The returned
// closer must be called when done; with an empty path it writes to
// fallback instead.
func Open(path string, fallback io.Writer, level string) (*slog.Logger, io.Closer, error) {
	if path == "" {
		l, err := New(fallback, level)
		return l, nopCloser{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	l, err := New(f, level)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return l, f, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
