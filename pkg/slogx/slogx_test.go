package slogx

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewInstallsDefault(t *testing.T) {
	logger := New(Config{Service: "sso-test", Version: "v0.0.0", Env: "test", Format: "text"})
	require.NotNil(t, logger)
	require.Same(t, logger, slog.Default())
}
