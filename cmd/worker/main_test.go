package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
)

func TestRootCommand(t *testing.T) {
	t.Setenv(cfgpkg.EnvConfigPath, "")

	t.Run("缺少server与token", func(t *testing.T) {
		cmd := newRootCommand()
		cmd.SetArgs([]string{})
		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required")
	})

	t.Run("参数过多", func(t *testing.T) {
		cmd := newRootCommand()
		cmd.SetArgs([]string{"ws://a", "tok", "extra"})
		assert.Error(t, cmd.Execute())
	})

	t.Run("标志解析", func(t *testing.T) {
		cmd := newRootCommand()
		require.NoError(t, cmd.ParseFlags([]string{"--processes", "8", "--reconnect", "3s", "--log-level", "debug"}))
		n, err := cmd.Flags().GetInt("processes")
		require.NoError(t, err)
		assert.Equal(t, 8, n)
		lvl, err := cmd.Flags().GetString("log-level")
		require.NoError(t, err)
		assert.Equal(t, "debug", lvl)
	})
}
