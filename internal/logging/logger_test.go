package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitLogger(t *testing.T) {
	t.Run("写入滚动文件", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hp.log")
		logger, err := InitLogger(cfgpkg.LoggingConfig{
			Level:  "debug",
			Format: "json",
			File:   cfgpkg.LumberjackConfig{Filename: path, MaxSizeMB: 1},
		})
		require.NoError(t, err)
		logger.Info("check dispatched", zap.String("check_id", "abc123"))
		_ = logger.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"check dispatched"`)
		assert.Contains(t, string(data), `"check_id":"abc123"`)
	})

	t.Run("无文件时仅控制台", func(t *testing.T) {
		logger, err := InitLogger(cfgpkg.LoggingConfig{Level: "info", Format: "console"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})
}
