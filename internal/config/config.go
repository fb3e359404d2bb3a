// internal/config/config.go
package config

import "time"

type Config struct {
	StatusFile      string        `yaml:"status_file"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	ListenHost     string        `yaml:"listen_host"` // empty = all interfaces
	Port           int           `yaml:"port"`
	Workers        int           `yaml:"workers"`
	QueueDepth     int           `yaml:"queue_depth"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"` // 0 = none

	Auth    AuthConfig    `yaml:"auth"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	NATS    NATSConfig    `yaml:"nats"`
	Mirror  MirrorConfig  `yaml:"mirror"`
}

// ---- AUTH ----

type AuthConfig struct {
	File string `yaml:"file"`
	Cost int    `yaml:"cost"` // bcrypt cost; 0 = bcrypt default
}

// ---- DAEMON ----

type DaemonConfig struct {
	PIDFile    string `yaml:"pid_file"`
	Foreground bool   `yaml:"foreground"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
	File   string `yaml:"file"`   // empty = stderr
}

// ---- METRICS (optional) ----

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty = disabled
}

// ---- NATS RELAY (optional) ----

type NATSConfig struct {
	URL        string `yaml:"url"` // empty = disabled
	Subject    string `yaml:"subject"`
	QueueGroup string `yaml:"queue_group"`
}

// ---- MODBUS MIRROR (optional) ----

type MirrorConfig struct {
	Endpoint    string   `yaml:"endpoint"` // empty = disabled
	UnitID      uint8    `yaml:"unit_id"`
	BaseAddress uint16   `yaml:"base_address"`
	TimeoutMs   int      `yaml:"timeout_ms"`
	RetryMs     int      `yaml:"retry_ms"`
	Services    []string `yaml:"services"`
}

// Enabled reports whether the mirror is configured.
func (m MirrorConfig) Enabled() bool { return m.Endpoint != "" }

// Enabled reports whether the NATS relay is configured.
func (n NATSConfig) Enabled() bool { return n.URL != "" }
