// internal/config/normalize.go
package config

import "strings"

// Normalize fills defaults for every unset field.
// It is allowed to mutate configuration.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.StatusFile == "" {
		cfg.StatusFile = DefaultStatusFile
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	// ------------------------------------------------------------
	// BROKER / WORKERS
	// ------------------------------------------------------------

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	// queue_depth and enqueue_timeout treat 0 as a real value
	// (unbuffered, wait for ctx); their defaults are seeded by
	// Default and Load instead.

	// ------------------------------------------------------------
	// AUTH / DAEMON / LOG
	// ------------------------------------------------------------

	if cfg.Auth.File == "" {
		cfg.Auth.File = DefaultAuthFile
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = DefaultPIDFile
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	// ------------------------------------------------------------
	// OPTIONAL COMPONENTS (only when enabled)
	// ------------------------------------------------------------

	if cfg.NATS.Enabled() && cfg.NATS.Subject == "" {
		cfg.NATS.Subject = DefaultNATSSubject
	}

	if cfg.Mirror.Enabled() {
		if cfg.Mirror.TimeoutMs == 0 {
			cfg.Mirror.TimeoutMs = DefaultMirrorTimeoutMs
		}
		if cfg.Mirror.RetryMs == 0 {
			cfg.Mirror.RetryMs = DefaultMirrorRetryMs
		}
	}
}
