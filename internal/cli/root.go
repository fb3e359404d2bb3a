// internal/cli/root.go

// Package cli is the statusbrokerd command line: flag parsing, the serve
// path (detach, pid file, signals), passphrase reset and a query client.
package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/status-broker/internal/auth"
	"github.com/tamzrod/status-broker/internal/broker"
	"github.com/tamzrod/status-broker/internal/config"
	"github.com/tamzrod/status-broker/internal/daemon"
	"github.com/tamzrod/status-broker/internal/logging"
)

// Env carries the process edges so commands can be driven from tests.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// ReadPassword reads one line without echo.
	ReadPassword func() ([]byte, error)
	// Geteuid reports the effective uid.
	Geteuid func() int
}

func (e *Env) fill() {
	if e.Stdin == nil {
		e.Stdin = os.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.ReadPassword == nil {
		e.ReadPassword = terminalPassword(e.Stdin)
	}
	if e.Geteuid == nil {
		e.Geteuid = os.Geteuid
	}
}

type rootFlags struct {
	configFile      string
	statusFile      string
	port            int
	workers         int
	resetPassphrase bool
	foreground      bool

	authFile        string
	pidFile         string
	listenHost      string
	logLevel        string
	logFormat       string
	metricsListen   string
	refreshInterval time.Duration
	queueDepth      int
}

// NewRootCmd returns the statusbrokerd command.
func NewRootCmd(version string, env Env) *cobra.Command {
	env.fill()
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "statusbrokerd",
		Short: "Authenticated status broker for monitored services",
		Long: `statusbrokerd answers "credential:serviceId" requests with the service's
current state, read from a monitoring status file.

Examples:
  statusbrokerd -D -c /usr/local/nagios/var/status.dat   # run in the foreground
  statusbrokerd -n 4 -p 1983                              # detach with 4 workers
  sudo statusbrokerd -P                                   # set the passphrase
`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &f)
			if err != nil {
				return err
			}
			if f.resetPassphrase {
				return resetPassphrase(cmd, cfg, env)
			}
			return serve(cmd, cfg)
		},
	}

	cmd.SetIn(env.Stdin)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)

	fl := cmd.Flags()
	fl.StringVarP(&f.statusFile, "status-file", "c", config.DefaultStatusFile, "monitoring status file")
	fl.IntVarP(&f.port, "port", "p", config.DefaultPort, "listening port")
	fl.IntVarP(&f.workers, "workers", "n", config.DefaultWorkers, "number of worker goroutines")
	fl.BoolVarP(&f.resetPassphrase, "reset-passphrase", "P", false, "set a new passphrase (root only) and exit")
	fl.BoolVarP(&f.foreground, "foreground", "D", false, "stay in the foreground")

	fl.StringVar(&f.configFile, "config", "", "YAML config file; flags override it")
	fl.StringVar(&f.authFile, "auth-file", config.DefaultAuthFile, "passphrase hash file")
	fl.StringVar(&f.pidFile, "pid-file", config.DefaultPIDFile, "pid file")
	fl.StringVar(&f.listenHost, "listen-host", "", "listen address (default all interfaces)")
	fl.StringVar(&f.logLevel, "log-level", "info", "trace|debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", "json", "json|console")
	fl.StringVar(&f.metricsListen, "metrics-listen", "", "serve Prometheus metrics on host:port")
	fl.DurationVar(&f.refreshInterval, "refresh-interval", config.DefaultRefreshInterval, "status file check interval")
	fl.IntVar(&f.queueDepth, "queue-depth", config.DefaultQueueDepth, "dispatch queue slots")

	cmd.SetVersionTemplate("statusbrokerd {{.Version}}\n")
	cmd.AddCommand(newQueryCmd(env))

	return cmd
}

// resolveConfig layers defaults, the config file and explicitly set flags.
func resolveConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := cmd.Flags().Changed
	if set("status-file") {
		cfg.StatusFile = f.statusFile
	}
	if set("port") {
		cfg.Port = f.port
	}
	if set("workers") {
		cfg.Workers = f.workers
	}
	if set("foreground") {
		cfg.Daemon.Foreground = f.foreground
	}
	if set("auth-file") {
		cfg.Auth.File = f.authFile
	}
	if set("pid-file") {
		cfg.Daemon.PIDFile = f.pidFile
	}
	if set("listen-host") {
		cfg.ListenHost = f.listenHost
	}
	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if set("metrics-listen") {
		cfg.Metrics.Listen = f.metricsListen
	}
	if set("refresh-interval") {
		cfg.RefreshInterval = f.refreshInterval
	}
	if set("queue-depth") {
		cfg.QueueDepth = f.queueDepth
	}

	// explicit zero or negative values must reach Validate, not defaults
	if set("port") && f.port <= 0 {
		return nil, fmt.Errorf("%w: port must be 1-65535, got %d", config.ErrInvalid, f.port)
	}
	if set("workers") && f.workers <= 0 {
		return nil, fmt.Errorf("%w: workers must be >= 1, got %d", config.ErrInvalid, f.workers)
	}

	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serve runs the daemon. Unless foreground, the parent binds, hands the
// socket to a detached child and returns.
func serve(cmd *cobra.Command, cfg *config.Config) error {
	closeLog, err := initLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()
	log := logging.Component("daemon")

	gate, err := auth.NewStore(cfg.Auth.File, cfg.Daemon.PIDFile, cfg.Auth.Cost).Load()
	if err != nil {
		return err
	}

	if daemon.IsChild() {
		ln, err := daemon.InheritedListener()
		if err != nil {
			return err
		}
		return runApp(cfg, gate, ln)
	}

	if daemon.Running(cfg.Daemon.PIDFile) {
		return fmt.Errorf("cli: already running (pid file %s)", cfg.Daemon.PIDFile)
	}

	ln, err := broker.Listen(cfg.ListenHost, cfg.Port)
	if err != nil {
		return err
	}

	if !cfg.Daemon.Foreground {
		pid, err := daemon.Detach(ln)
		if err != nil {
			return err
		}
		log.Info().Int("pid", pid).Msg("detached")
		fmt.Fprintf(cmd.OutOrStdout(), "statusbrokerd started (pid %d)\n", pid)
		return nil
	}

	return runApp(cfg, gate, ln)
}

func runApp(cfg *config.Config, gate *auth.Gate, ln net.Listener) error {
	app, err := Build(cfg, gate, ln)
	if err != nil {
		ln.Close()
		return err
	}

	if err := daemon.WritePIDFile(cfg.Daemon.PIDFile); err != nil {
		ln.Close()
		return err
	}
	defer daemon.RemovePIDFile(cfg.Daemon.PIDFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				app.log.Info().Msg("SIGHUP: reloading status file")
				app.TriggerReload()
			}
		}
	}()

	return app.Run(ctx)
}

// initLogging applies the log config; a log file is opened for append.
func initLogging(cfg *config.Config, stderr io.Writer) (func(), error) {
	out := stderr
	closeFn := func() {}

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("cli: log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	return closeFn, nil
}
