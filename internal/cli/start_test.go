package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunning(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "relais.pid")

	t.Run("no pid file", func(t *testing.T) {
		assert.False(t, isRunning(pidFile))
	})

	t.Run("live process", func(t *testing.T) {
		// Our own PID is guaranteed to be signalable.
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
		assert.True(t, isRunning(pidFile))
	})

	t.Run("garbage pid file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0644))
		assert.False(t, isRunning(pidFile))
	})
}

func TestWritePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "nested", "relais.pid")

	require.NoError(t, writePIDFile(pidFile))

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}
