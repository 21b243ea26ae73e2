package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"DATA_DIR", "MAX_WORKERS", "MAX_QUEUE", "COMPRESSION_SLOTS", "ENQUEUE_TIMEOUT",
	"PREVIEW_SECONDS", "FFMPEG_PATH", "GRPC_PORT", "HTTP_PORT", "SHUTDOWN_TIMEOUT", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, 10, cfg.MaxQueue)
	assert.Equal(t, 3, cfg.CompressionSlots)
	assert.Equal(t, time.Second, cfg.EnqueueTimeout)
	assert.Equal(t, 10, cfg.PreviewSeconds)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 7280, cfg.GRPCPort)
	assert.Equal(t, 7890, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/srv/vidq")
	t.Setenv("MAX_WORKERS", "2")
	t.Setenv("MAX_QUEUE", "5")
	t.Setenv("ENQUEUE_TIMEOUT", "250ms")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/vidq", cfg.DataDir)
	assert.Equal(t, 2, cfg.MaxWorkers)
	assert.Equal(t, 5, cfg.MaxQueue)
	assert.Equal(t, 250*time.Millisecond, cfg.EnqueueTimeout)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.True(t, cfg.Debug())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MAX_WORKERS", "many"},
		{"MAX_WORKERS", "0"},
		{"MAX_QUEUE", "-1"},
		{"COMPRESSION_SLOTS", "0"},
		{"PREVIEW_SECONDS", "ten"},
		{"ENQUEUE_TIMEOUT", "1"},
		{"ENQUEUE_TIMEOUT", "-1s"},
		{"SHUTDOWN_TIMEOUT", "soon"},
		{"GRPC_PORT", "70000"},
		{"HTTP_PORT", "http"},
		{"HTTP_PORT", "7280"},
		{"LOG_LEVEL", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
