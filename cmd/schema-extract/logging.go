// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pdiddy/schema-extract/pkg/types"
)

// logger is the process logger, configured before any command runs.
var logger = slog.Default()

// setupLogger builds the logger from the log settings and installs it as
// the slog default so library packages log through it too.
func setupLogger(c types.LogConfig, verbose bool, w io.Writer) {
	level := parseLevel(c.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(c.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
