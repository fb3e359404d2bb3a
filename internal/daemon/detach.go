// internal/daemon/detach.go

// Package daemon handles backgrounding and the pid file.
//
// Go cannot fork a running runtime, so detaching re-executes the binary in a
// new session. The parent binds the listener first and hands the socket to
// the child as fd 3, so bind errors still surface in the foreground.
package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
)

// EnvDetached marks the re-executed child.
const EnvDetached = "STATUSBROKERD_DETACHED"

// inheritedFD is the first ExtraFiles descriptor.
const inheritedFD = 3

// IsChild reports whether this process is the detached child.
func IsChild() bool {
	return os.Getenv(EnvDetached) == "1"
}

// InheritedListener returns the listener passed by the parent.
func InheritedListener() (net.Listener, error) {
	f := os.NewFile(uintptr(inheritedFD), "listener")
	if f == nil {
		return nil, errors.New("daemon: no inherited listener")
	}
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("daemon: inherited listener: %w", err)
	}
	return ln, nil
}

// Detach starts a copy of this process in a new session, handing it ln.
// The caller should exit 0 on success. The parent's copy of ln is closed.
func Detach(ln net.Listener) (int, error) {
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return 0, errors.New("daemon: listener is not TCP")
	}
	f, err := tl.File()
	if err != nil {
		return 0, fmt.Errorf("daemon: listener fd: %w", err)
	}
	defer f.Close()
	defer ln.Close()

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("daemon: executable: %w", err)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("daemon: %w", err)
	}
	defer devnull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), EnvDetached+"=1")
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.ExtraFiles = []*os.File{f}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("daemon: start child: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
