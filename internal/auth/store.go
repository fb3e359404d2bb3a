// internal/auth/store.go
package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tamzrod/status-broker/internal/daemon"
)

var (
	// ErrPermission means the reset was attempted without root privilege.
	ErrPermission = errors.New("auth: passphrase reset requires root privilege")

	// ErrNoCredential means the secret file is missing or empty.
	ErrNoCredential = errors.New("auth: no passphrase configured")

	// ErrDaemonRunning means a serving daemon owns the pid file.
	ErrDaemonRunning = errors.New("auth: daemon is running; stop it before resetting the passphrase")

	// ErrBadPassphrase means the new passphrase is empty or too long to hash.
	ErrBadPassphrase = errors.New("auth: passphrase must be 1-72 bytes")
)

// maxPassphrase is bcrypt's input limit.
const maxPassphrase = 72

// Store is the local secret file holding one hashed passphrase.
type Store struct {
	Path    string
	PIDFile string // reset refuses while this names a live process
	Cost    int    // bcrypt cost; 0 means bcrypt.DefaultCost

	// Geteuid reports the effective uid; nil means os.Geteuid.
	Geteuid func() int
}

// NewStore builds a store for the secret file at path.
func NewStore(path, pidFile string, cost int) *Store {
	return &Store{Path: path, PIDFile: pidFile, Cost: cost, Geteuid: os.Geteuid}
}

// Load reads the hash and returns a ready Gate.
func (s *Store) Load() (*Gate, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCredential, s.Path)
		}
		return nil, fmt.Errorf("auth: read %s: %w", s.Path, err)
	}

	hash := bytes.TrimSpace(b)
	if len(hash) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoCredential, s.Path)
	}
	return NewGate(hash)
}

// Reset replaces the stored passphrase. It is an admin-only path: it needs
// an effective uid of 0 and refuses while the daemon is serving.
func (s *Store) Reset(passphrase string) error {
	euid := s.Geteuid
	if euid == nil {
		euid = os.Geteuid
	}
	if euid() != 0 {
		return ErrPermission
	}
	if len(passphrase) == 0 || len(passphrase) > maxPassphrase {
		return ErrBadPassphrase
	}
	if daemon.Running(s.PIDFile) {
		return ErrDaemonRunning
	}

	hash, err := Hash(passphrase, s.Cost)
	if err != nil {
		return fmt.Errorf("auth: hash: %w", err)
	}

	return writeAtomic(s.Path, append(hash, '\n'))
}

// writeAtomic replaces path with data via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("auth: secret dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".auth-*")
	if err != nil {
		return fmt.Errorf("auth: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("auth: rename: %w", err)
	}
	return nil
}
