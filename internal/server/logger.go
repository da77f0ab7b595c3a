// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"

	"codeberg.org/willtank/willtank/internal/config"
)

// setupLogger installs the default slog logger. The scan and migrate
// commands pass stderr so their stdout stays machine readable.
func setupLogger(w io.Writer, cfg config.LogConfig) {
	slog.SetDefault(slog.New(newLogHandler(w, cfg)))
}

func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: "2006-01-02 15:04:05"})
}
