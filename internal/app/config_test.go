package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/depot")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 50, cfg.GenerationBatchSize)
	require.Equal(t, 30*time.Second, cfg.HandoverLockTTL)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, "depot.events", cfg.NotifyChannel)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadBatchSize(t *testing.T) {
	t.Setenv("GENERATION_BATCH_SIZE", "0")

	_, err := LoadConfig()
	require.EqualError(t, err, "generation batch size must be positive")
}

func TestLoadConfigRejectsEmptyDSN(t *testing.T) {
	t.Setenv("PG_DSN", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn", AppEnv: "staging"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", slog.Int64("order_id", 7))

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, `"msg":"kept"`)
	require.Contains(t, out, `"order_id":7`)
	require.Contains(t, out, `"env":"staging"`)
}
