package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("unknown level falls back to info", func(t *testing.T) {
		l, err := New(Config{Level: "loud"})
		require.Nil(t, err)
		assert.True(t, l.Core().Enabled(zap.InfoLevel))
		assert.False(t, l.Core().Enabled(zap.DebugLevel))
	})
	t.Run("debug level", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Format: "console", OutputFile: "stderr"})
		require.Nil(t, err)
		assert.True(t, l.Core().Enabled(zap.DebugLevel))
	})
	t.Run("json lines are appended to the output file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "core.log")
		l, err := New(Config{Level: "info", Format: "json", OutputFile: path})
		require.Nil(t, err)
		l.Info("booted")
		require.Nil(t, l.Sync())

		b, err := os.ReadFile(path)
		require.Nil(t, err)
		assert.Contains(t, string(b), `"msg":"booted"`)
		assert.Contains(t, string(b), `"service":"xvmem"`)
	})
	t.Run("output file cannot be opened", func(t *testing.T) {
		_, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "core.log")})
		assert.NotNil(t, err)
	})
}
