package slogutil

import (
	"io"
	"log/slog"
	"path/filepath"

	"tagvis/internal/config"
	"tagvis/internal/paths"
)

// LoggerFactory creates loggers for the CLI and long-running subsystems.
// Precedence for the level: CLI flags > config > info.
type LoggerFactory struct {
	vaultRoot string
	config    *config.Config
	cliLevel  slog.Leveler // nil when no flag was given
	closers   []io.Closer
}

// NewLoggerFactory creates a new logger factory. cliLevel is nil unless a
// command line flag chose the level.
func NewLoggerFactory(vaultRoot string, cfg *config.Config, cliLevel slog.Leveler) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		vaultRoot: vaultRoot,
		config:    cfg,
		cliLevel:  cliLevel,
		closers:   make([]io.Closer, 0),
	}
}

// CLILogger logs to w and, when logging.file is configured, to that file too.
func (f *LoggerFactory) CLILogger(w io.Writer) *slog.Logger {
	level := f.effectiveLevel()
	console := NewLineHandler(w, &slog.HandlerOptions{Level: level})

	if f.config.Logging.File == "" {
		return slog.New(console)
	}

	path := f.config.Logging.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.vaultRoot, path)
	}
	fileLogger, closer, err := NewFileLogger(path, level)
	if err != nil {
		return slog.New(console)
	}
	f.closers = append(f.closers, closer)
	return NewTeeLogger(console, fileLogger.Handler())
}

// SubsystemLogger tees w with <vault>/.tagvis/logs/<subsystem>.log.
// When the log directory cannot be created only w is used.
func (f *LoggerFactory) SubsystemLogger(subsystem string, w io.Writer) *slog.Logger {
	level := f.effectiveLevel()
	console := NewLineHandler(w, &slog.HandlerOptions{Level: level})

	if f.vaultRoot == "" {
		return slog.New(console)
	}
	if _, err := paths.EnsureLogsDir(f.vaultRoot); err != nil {
		return slog.New(console)
	}

	fileLogger, closer, err := NewFileLogger(paths.GetLogPath(f.vaultRoot, subsystem), level)
	if err != nil {
		return slog.New(console)
	}
	f.closers = append(f.closers, closer)
	return NewTeeLogger(console, fileLogger.Handler())
}

// effectiveLevel returns the level to log at.
func (f *LoggerFactory) effectiveLevel() slog.Level {
	if f.cliLevel != nil {
		return f.cliLevel.Level()
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelInfo
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
