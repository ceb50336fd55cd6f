package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SlogLogger adapts a structured slog.Logger to the printf-style logger
// interface. Verbose maps to debug level.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps an existing slog.Logger.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewStructured builds a slog.Logger writing to w. format is "json" or "text";
// level is one of debug, info, warn, error (default info).
func NewStructured(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog returns the underlying logger, for components that log with attributes.
func (s *SlogLogger) Slog() *slog.Logger { return s.l }

func (s *SlogLogger) Verbose(format string, args ...interface{}) {
	s.l.Debug(sprintf(format, args))
}

func (s *SlogLogger) Info(format string, args ...interface{}) {
	s.l.Info(sprintf(format, args))
}

func (s *SlogLogger) Error(format string, args ...interface{}) {
	s.l.Error(sprintf(format, args))
}

func sprintf(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
