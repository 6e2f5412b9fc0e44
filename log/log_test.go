package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler()
	assert.NotNil(t, h)
	assert.True(t, h.Enabled(context.TODO(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelDebug))
}

func TestNewHandler_Options(t *testing.T) {
	h := NewHandler(
		WithLevel(slog.LevelDebug),
		WithSource(true),
	)
	assert.NotNil(t, h)
	assert.True(t, h.Enabled(context.TODO(), slog.LevelDebug))
}

func TestHandler_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithFormat(FormatJSON), WithWriter(&buf))

	logger.Info("device created", "plugin", "uart")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output: %s", buf.String())
	assert.Equal(t, "device created", entry["msg"])
	assert.Equal(t, "uart", entry["plugin"])
	assert.Equal(t, "mmio", entry["component"])
	assert.Contains(t, entry, "pid")
}

func TestHandler_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf))

	logger.Warn("store ignored", "offset", 16)

	out := buf.String()
	assert.Contains(t, out, "store ignored")
	assert.Contains(t, out, "component=mmio")
	assert.Contains(t, out, "offset=16")
}

func TestHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithWriter(&buf), WithLevel(slog.LevelWarn))

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithFormat(FormatJSON), WithWriter(&buf)).
		With("plugin", "ram").
		WithGroup("access")

	logger.Info("load", "offset", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ram", entry["plugin"])
	group, ok := entry["access"].(map[string]any)
	require.True(t, ok, "missing access group: %s", buf.String())
	assert.Equal(t, 4.0, group["offset"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogError_Oops(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithFormat(FormatJSON), WithWriter(&buf))

	err := oops.Code("MMIO_NAME_INVALID").With("plugin", "bad name").Errorf("invalid name")
	LogError(logger, "register failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "register failed", entry["msg"])
	assert.Equal(t, "MMIO_NAME_INVALID", entry["code"])
	assert.Contains(t, entry["error"], "invalid name")
}

func TestLogError_Plain(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithFormat(FormatJSON), WithWriter(&buf))

	LogError(logger, "close failed", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
}
