// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalid marks every configuration error.
var ErrInvalid = errors.New("config: invalid")

// maxMirrorServices keeps the register block inside one address space.
const maxMirrorServices = 0xFFFF - 3

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// It MUST be called after Normalize.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}

	// ------------------------------------------------------------
	// CORE
	// ------------------------------------------------------------

	if cfg.StatusFile == "" {
		return invalid("status_file is required")
	}
	if cfg.RefreshInterval < 0 {
		return invalid("refresh_interval must be >= 0, got %s", cfg.RefreshInterval)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return invalid("port must be 1-65535, got %d", cfg.Port)
	}
	if cfg.ListenHost != "" && net.ParseIP(cfg.ListenHost) == nil && !validHostname(cfg.ListenHost) {
		return invalid("listen_host %q is not an address or host name", cfg.ListenHost)
	}
	if cfg.Workers < 1 {
		return invalid("workers must be >= 1, got %d", cfg.Workers)
	}
	if cfg.QueueDepth < 0 {
		return invalid("queue_depth must be >= 0, got %d", cfg.QueueDepth)
	}
	if cfg.EnqueueTimeout < 0 {
		return invalid("enqueue_timeout must be >= 0, got %s", cfg.EnqueueTimeout)
	}
	if cfg.IdleTimeout < 0 {
		return invalid("idle_timeout must be >= 0, got %s", cfg.IdleTimeout)
	}

	if cfg.Auth.File == "" {
		return invalid("auth.file is required")
	}
	if cfg.Auth.Cost != 0 && (cfg.Auth.Cost < 4 || cfg.Auth.Cost > 31) {
		return invalid("auth.cost must be 4-31, got %d", cfg.Auth.Cost)
	}
	if cfg.Daemon.PIDFile == "" {
		return invalid("daemon.pid_file is required")
	}

	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is not one of trace, debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is not one of json, console", cfg.Log.Format)
	}

	// ------------------------------------------------------------
	// OPTIONAL COMPONENTS
	// ------------------------------------------------------------

	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return invalid("metrics.listen %q: %v", cfg.Metrics.Listen, err)
		}
	}

	if cfg.Mirror.Enabled() {
		if _, _, err := net.SplitHostPort(cfg.Mirror.Endpoint); err != nil {
			return invalid("mirror.endpoint %q: %v", cfg.Mirror.Endpoint, err)
		}
		if len(cfg.Mirror.Services) == 0 {
			return invalid("mirror.services must list at least one service id")
		}
		if len(cfg.Mirror.Services) > maxMirrorServices {
			return invalid("mirror.services lists %d ids, max %d", len(cfg.Mirror.Services), maxMirrorServices)
		}
		if int(cfg.Mirror.BaseAddress)+3+len(cfg.Mirror.Services) > 0x10000 {
			return invalid("mirror block at base_address=%d with %d services exceeds the register space",
				cfg.Mirror.BaseAddress, len(cfg.Mirror.Services))
		}
		seen := make(map[string]struct{}, len(cfg.Mirror.Services))
		for _, id := range cfg.Mirror.Services {
			if id == "" {
				return invalid("mirror.services contains an empty id")
			}
			if _, dup := seen[id]; dup {
				return invalid("mirror.services lists %q twice", id)
			}
			seen[id] = struct{}{}
		}
		if cfg.Mirror.TimeoutMs < 0 || cfg.Mirror.RetryMs < 0 {
			return invalid("mirror timeouts must be >= 0")
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func validHostname(h string) bool {
	if len(h) > 253 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}
