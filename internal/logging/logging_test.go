package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"dev":        zapcore.DebugLevel,
		"debug":      zapcore.DebugLevel,
		"info":       zapcore.InfoLevel,
		"warning":    zapcore.WarnLevel,
		"prod":       zapcore.ErrorLevel,
		"":           zapcore.WarnLevel,
		"shouting":   zapcore.WarnLevel,
		"production": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in, zapcore.WarnLevel), "level %q", in)
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	logger := Init(Options{Level: "info", File: path})
	logger.Info("hello", zap.String("room", "abc123"))
	require.NoError(t, logger.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"room":"abc123"`)
	assert.Same(t, logger, zap.L())
}
