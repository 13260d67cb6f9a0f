package slogutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LevelSilent is above every level a record can have.
const LevelSilent = slog.Level(100)

// NewLogger returns a logger writing lines to w at level and above.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewLineHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewFileLogger appends to the log file at path, creating it and its
// directory when missing. The caller closes the returned file.
func NewFileLogger(path string, level slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f, level), f, nil
}

// NewDiscardLogger returns a logger that drops every record.
func NewDiscardLogger() *slog.Logger {
	return NewLogger(io.Discard, LevelSilent)
}

// ParseLevel reads a logging.level value. Besides the slog names it accepts
// "warning" and "silent".
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, errors.New("empty log level")
	case "warning":
		return slog.LevelWarn, nil
	case "silent", "off":
		return LevelSilent, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// LevelFromString is ParseLevel with info for anything it rejects.
func LevelFromString(s string) slog.Level {
	level, err := ParseLevel(s)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

var verbosityLevels = []slog.Level{slog.LevelWarn, slog.LevelInfo, slog.LevelDebug}

// LevelFromVerbosity maps -v counts to a level: none is warn, -v info and
// -vv or more debug. quiet silences everything.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return LevelSilent
	}
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity >= len(verbosityLevels) {
		verbosity = len(verbosityLevels) - 1
	}
	return verbosityLevels[verbosity]
}

// fanout hands each record to every handler enabled for its level.
type fanout []slog.Handler

// NewTeeHandler returns a handler writing to all of handlers.
func NewTeeHandler(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

// NewTeeLogger returns a logger writing to all of handlers.
func NewTeeLogger(handlers ...slog.Handler) *slog.Logger {
	return slog.New(NewTeeHandler(handlers...))
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
