// internal/daemon/pidfile.go
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// WritePIDFile records the current process id at path.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("daemon: pid dir: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// RemovePIDFile deletes path if it still names this process.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	pid, err := readPID(path)
	if err != nil || pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Running reports whether the pid file at path names a live process.
// A missing or stale file means not running.
func Running(path string) bool {
	if path == "" {
		return false
	}
	pid, err := readPID(path)
	if err != nil || pid <= 0 {
		return false
	}
	err = syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func readPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
