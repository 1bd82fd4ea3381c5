// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures the process-wide slog logger.
//
// Output goes to stderr, following Unix CLI conventions. An interactive
// terminal gets human-readable text; a pipe or service deployment gets
// JSON lines. File logging is optional and additive.
//
// Thread Safety: Setup installs the logger via slog.SetDefault; the
// returned logger and the default are safe for concurrent use.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Config controls logger construction.
type Config struct {
	// Level is "debug", "info", "warn", or "error". Defaults to info.
	Level string

	// LogDir, when set, additionally writes JSON logs to a dated file
	// in this directory. The directory is created if needed.
	LogDir string

	// Service names the component in file names and log attributes.
	Service string

	// ForceJSON emits JSON to stderr even on a terminal.
	ForceJSON bool
}

// ParseLevel maps a level name to its slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Setup builds the logger, installs it as the slog default, and returns
// it together with a close function for the optional log file.
//
// Outputs:
//
//	*slog.Logger - The installed logger.
//	func() - Closes the log file; a no-op without LogDir.
//	error - Non-nil when the log directory or file cannot be created.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var stderrHandler slog.Handler
	if !cfg.ForceJSON && isatty.IsTerminal(os.Stderr.Fd()) {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	}

	closeFn := func() {}
	handler := stderrHandler

	if cfg.LogDir != "" {
		file, err := openLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { file.Close() }
		handler = newFanoutHandler(stderrHandler, slog.NewJSONHandler(file, opts))
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With(slog.String("service", cfg.Service))
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// openLogFile creates {service}_{date}.log under dir, appending.
func openLogFile(dir, service string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	if service == "" {
		service = "forge"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}
