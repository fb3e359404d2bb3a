// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---- DEFAULTS ----

const (
	DefaultStatusFile      = "/usr/local/nagios/var/status.dat"
	DefaultPort            = 1983
	DefaultWorkers         = 1
	DefaultQueueDepth      = 64
	DefaultEnqueueTimeout  = 2 * time.Second
	DefaultRefreshInterval = 15 * time.Second
	DefaultAuthFile        = "/etc/statusbrokerd/auth"
	DefaultPIDFile         = "/var/run/statusbrokerd.pid"
	DefaultNATSSubject     = "statusbroker.query"
	DefaultMirrorTimeoutMs = 1000
	DefaultMirrorRetryMs   = 5000
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := seeded()
	Normalize(cfg)
	return cfg
}

// seeded holds the defaults whose zero value is meaningful, so that an
// explicit 0 in a file survives Normalize.
func seeded() *Config {
	return &Config{
		QueueDepth:     DefaultQueueDepth,
		EnqueueTimeout: DefaultEnqueueTimeout,
	}
}

// Load reads a YAML file. Unknown keys are rejected. The result is not
// normalized or validated; only the zero-meaningful defaults are seeded.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := seeded()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return cfg, nil
}
