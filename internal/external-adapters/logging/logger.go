// Package logging adapts log/slog to the domain Logger port.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ochairo/enforcer/internal/domain/interfaces"
)

// Logger implements interfaces.Logger over a slog.Logger
type Logger struct {
	log *slog.Logger
}

var _ interfaces.Logger = (*Logger)(nil)

// ParseLevel converts debug, info, warn or error into a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// New returns a logger writing to w (stderr when nil) in "text" or "json" format
func New(level slog.Level, format string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{log: slog.New(handler)}
}

// With returns a logger that adds a "component" attribute to every record
func (l *Logger) With(component string) *Logger {
	return &Logger{log: l.log.With(slog.String("component", component))}
}

// Debug implements interfaces.Logger
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.emit(slog.LevelDebug, msg, fields)
}

// Info implements interfaces.Logger
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.emit(slog.LevelInfo, msg, fields)
}

// Warn implements interfaces.Logger
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.emit(slog.LevelWarn, msg, fields)
}

// Error implements interfaces.Logger
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.emit(slog.LevelError, msg, fields)
}

func (l *Logger) emit(level slog.Level, msg string, fields []interfaces.Field) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			attrs = append(attrs, slog.String(f.Key, err.Error()))
			continue
		}
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.log.LogAttrs(ctx, level, msg, attrs...)
}
