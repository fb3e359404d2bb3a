// internal/auth/auth_test.go
package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tamzrod/status-broker/internal/daemon"
)

// helper: a store that believes it runs as the given uid
func testStore(t *testing.T, uid int) *Store {
	t.Helper()
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "etc", "auth"), filepath.Join(dir, "statusbrokerd.pid"), bcrypt.MinCost)
	s.Geteuid = func() int { return uid }
	return s
}

func TestGate_Check(t *testing.T) {
	hash, err := Hash("secret", bcrypt.MinCost)
	require.NoError(t, err)

	g, err := NewGate(hash)
	require.NoError(t, err)

	assert.True(t, g.Check("secret"))
	assert.False(t, g.Check("wrong"))
	assert.False(t, g.Check(""))
	assert.False(t, g.Check("secret "))
}

func TestGate_NilRejectsEverything(t *testing.T) {
	var g *Gate
	assert.False(t, g.Check("anything"))
}

func TestNewGate_RejectsNonHash(t *testing.T) {
	_, err := NewGate([]byte("plaintext"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadHash))
}

func TestStore_ResetThenLoad(t *testing.T) {
	s := testStore(t, 0)

	require.NoError(t, s.Reset("secret"))

	fi, err := os.Stat(s.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	raw, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	g, err := s.Load()
	require.NoError(t, err)
	assert.True(t, g.Check("secret"))
	assert.False(t, g.Check("wrong"))
}

func TestStore_ResetIsSalted(t *testing.T) {
	s := testStore(t, 0)

	require.NoError(t, s.Reset("secret"))
	first, err := os.ReadFile(s.Path)
	require.NoError(t, err)

	require.NoError(t, s.Reset("secret"))
	second, err := os.ReadFile(s.Path)
	require.NoError(t, err)

	assert.NotEqual(t, string(first), string(second))
}

func TestStore_ResetRequiresRoot(t *testing.T) {
	s := testStore(t, 1000)

	err := s.Reset("secret")
	assert.True(t, errors.Is(err, ErrPermission))

	_, statErr := os.Stat(s.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_ResetRefusedWhileDaemonRuns(t *testing.T) {
	s := testStore(t, 0)

	// this test process stands in for the daemon
	require.NoError(t, daemon.WritePIDFile(s.PIDFile))

	err := s.Reset("secret")
	assert.True(t, errors.Is(err, ErrDaemonRunning))
}

func TestStore_ResetValidatesPassphrase(t *testing.T) {
	s := testStore(t, 0)

	assert.True(t, errors.Is(s.Reset(""), ErrBadPassphrase))
	assert.True(t, errors.Is(s.Reset(strings.Repeat("x", 73)), ErrBadPassphrase))
}

func TestStore_LoadMissingOrEmpty(t *testing.T) {
	s := testStore(t, 0)

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrNoCredential))

	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path), 0o700))
	require.NoError(t, os.WriteFile(s.Path, []byte("\n"), 0o600))

	_, err = s.Load()
	assert.True(t, errors.Is(err, ErrNoCredential))
}
