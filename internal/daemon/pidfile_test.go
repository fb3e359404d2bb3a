// internal/daemon/pidfile_test.go
package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "statusbrokerd.pid")

	assert.False(t, Running(path))

	require.NoError(t, WritePIDFile(path))
	assert.True(t, Running(path))

	require.NoError(t, RemovePIDFile(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunning_StaleOrGarbage(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.pid")
	require.NoError(t, os.WriteFile(garbage, []byte("not-a-pid"), 0o644))
	assert.False(t, Running(garbage))

	zero := filepath.Join(dir, "zero.pid")
	require.NoError(t, os.WriteFile(zero, []byte("0\n"), 0o644))
	assert.False(t, Running(zero))

	assert.False(t, Running(""))
}

func TestRemovePIDFile_LeavesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.pid")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	require.NoError(t, RemovePIDFile(path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestIsChild(t *testing.T) {
	t.Setenv(EnvDetached, "")
	assert.False(t, IsChild())

	t.Setenv(EnvDetached, "1")
	assert.True(t, IsChild())
}
