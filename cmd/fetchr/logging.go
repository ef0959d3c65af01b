package main

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. With a log file configured,
// records are written as JSON to a size-rotated file; otherwise they go
// to stderr in the configured format.
func newLogger(cfg LogConfig, stderr io.Writer) (*slog.Logger, func() error, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}
	hopts := slog.HandlerOptions{Level: level}

	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		return slog.New(slog.NewJSONHandler(lj, &hopts)), lj.Close, nil
	}

	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(stderr, &hopts)
	default:
		h = slog.NewTextHandler(stderr, &hopts)
	}
	return slog.New(h), func() error { return nil }, nil
}
