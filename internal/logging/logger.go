// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides structured, leveled logging for the supervisor,
// layered over log/slog with an optional syslog forwarding sink.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Config controls how a Logger is constructed.
type Config struct {
	Level  slog.Level
	Output io.Writer
	Syslog SyslogConfig
}

// DefaultConfig returns a Logger configuration writing leveled text to
// stderr with syslog forwarding disabled.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Output: os.Stderr,
		Syslog: DefaultSyslogConfig(),
	}
}

// Logger wraps slog.Logger with the kv-argument call shape used throughout
// the supervisor.
type Logger struct {
	base *slog.Logger
}

// New creates a Logger from cfg. If cfg.Syslog.Enabled, log records are
// duplicated to a syslog writer in addition to cfg.Output.
func New(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.Syslog.Enabled {
		sw, err := NewSyslogWriter(cfg.Syslog)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(out, sw)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level})
	return &Logger{base: slog.New(handler)}, nil
}

// Info logs at info level with alternating key/value pairs.
func (l *Logger) Info(msg string, kv ...any) {
	l.base.Log(context.Background(), slog.LevelInfo, msg, kv...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...any) {
	l.base.Log(context.Background(), slog.LevelWarn, msg, kv...)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...any) {
	l.base.Log(context.Background(), slog.LevelDebug, msg, kv...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...any) {
	l.base.Log(context.Background(), slog.LevelError, msg, kv...)
}

// With returns a Logger that always includes the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{base: l.base.With(kv...)}
}
