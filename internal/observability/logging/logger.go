package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return newLogger(service, level, os.Stdout)
}

// NewLogger writes JSON records to console and, when file is set, to that
// file as well. The MCP server passes stderr because stdout carries the
// protocol. The returned cleanup closes the file.
func NewLogger(service, level string, console io.Writer, file string) (*slog.Logger, func() error, error) {
	if console == nil {
		console = os.Stdout
	}
	if strings.TrimSpace(file) == "" {
		return newLogger(service, level, console), func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewLoggerWithWriters(service, level, console, f), f.Close, nil
}

func NewLoggerWithWriters(service, level string, console, file io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	handler := slogmulti.Fanout(
		slog.NewJSONHandler(console, opts),
		slog.NewJSONHandler(file, opts),
	)
	return slog.New(handler).With("service", service)
}

func newLogger(service, level string, w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
