package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestSetupWritesFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	logger, closeFn, err := Setup(Options{Level: "info", File: path})
	require.NoError(t, err)

	logger.Info("scan complete", slog.Int("markets", 7))
	logger.Debug("suppressed")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1, "debug line must not reach an info-level sink")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "scan complete", rec["msg"])
	assert.Equal(t, float64(7), rec["markets"])
}

func TestMultiHandlerLevels(t *testing.T) {
	var warnBuf, debugBuf bytes.Buffer
	h := fanout([]slog.Handler{
		slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	logger := slog.New(h)
	logger.Debug("quiet")
	logger.Warn("loud")

	assert.NotContains(t, warnBuf.String(), "quiet")
	assert.Contains(t, warnBuf.String(), "loud")
	assert.Contains(t, debugBuf.String(), "quiet")
	assert.Contains(t, debugBuf.String(), "loud")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}
