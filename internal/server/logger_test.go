// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/willtank/willtank/internal/config"
)

func TestNewLogHandler_Levels(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			h := newLogHandler(&bytes.Buffer{}, config.LogConfig{Level: tt.level})
			assert.True(t, h.Enabled(context.Background(), tt.expected))
			assert.False(t, h.Enabled(context.Background(), tt.expected-1))
		})
	}
}

func TestNewLogHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, config.LogConfig{Level: "info", Format: "json"}))

	logger.Info("scan finished", "opened", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scan finished", entry["msg"])
	assert.InDelta(t, 2, entry["opened"], 0)
}

func TestNewLogHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, config.LogConfig{Level: "info", Format: "text"}))

	logger.Debug("hidden")
	logger.Warn("reminder failed", "user_id", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "reminder failed")
	assert.Contains(t, out, "user_id")
}
