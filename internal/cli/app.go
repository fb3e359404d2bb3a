// internal/cli/app.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/status-broker/internal/auth"
	"github.com/tamzrod/status-broker/internal/broker"
	"github.com/tamzrod/status-broker/internal/config"
	"github.com/tamzrod/status-broker/internal/logging"
	"github.com/tamzrod/status-broker/internal/metrics"
	"github.com/tamzrod/status-broker/internal/mirror"
	"github.com/tamzrod/status-broker/internal/natsrelay"
	"github.com/tamzrod/status-broker/internal/status"
	"github.com/tamzrod/status-broker/internal/supervisor"
	"github.com/tamzrod/status-broker/internal/worker"
)

// App is one fully wired daemon.
type App struct {
	Config  *config.Config
	Source  *status.Source
	Pool    *worker.Pool
	Broker  *broker.Broker
	Metrics *metrics.Metrics

	// Reload forces a status reload. Sends never block.
	Reload chan struct{}

	tree *supervisor.Tree
	log  zerolog.Logger
}

// Build wires every component around an already bound listener.
// cfg must be normalized and validated.
func Build(cfg *config.Config, gate *auth.Gate, ln net.Listener) (*App, error) {
	if cfg == nil || gate == nil || ln == nil {
		return nil, errors.New("cli: config, gate and listener required")
	}

	m := metrics.New()
	src := status.NewSource(cfg.StatusFile, m)

	pool, err := worker.NewPool(worker.Config{
		Size:           cfg.Workers,
		QueueDepth:     cfg.QueueDepth,
		EnqueueTimeout: cfg.EnqueueTimeout,
	}, gate, src, m)
	if err != nil {
		return nil, err
	}

	b, err := broker.New(ln, pool, broker.Options{IdleTimeout: cfg.IdleTimeout, Metrics: m})
	if err != nil {
		return nil, err
	}

	reload := make(chan struct{}, 1)
	reloader, err := status.NewReloader(src, cfg.RefreshInterval, reload)
	if err != nil {
		return nil, err
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{})
	tree.AddCore(pool)
	tree.AddCore(reloader)
	tree.AddCore(b)

	// ------------------------------------------------------------
	// OPTIONAL EDGE SERVICES
	// ------------------------------------------------------------

	if cfg.Metrics.Listen != "" {
		tree.AddEdge(supervisor.NewHTTPService("metrics-http", m.NewServer(cfg.Metrics.Listen), 5*time.Second))
	}

	if cfg.NATS.Enabled() {
		relay, err := natsrelay.New(natsrelay.Config{
			URL:        cfg.NATS.URL,
			Subject:    cfg.NATS.Subject,
			QueueGroup: cfg.NATS.QueueGroup,
		}, pool)
		if err != nil {
			return nil, err
		}
		tree.AddEdge(relay)
	}

	if cfg.Mirror.Enabled() {
		mc := cfg.Mirror
		mir, err := mirror.New(mirror.Config{
			UnitID:      mc.UnitID,
			BaseAddress: mc.BaseAddress,
			Services:    mc.Services,
			RetryEvery:  time.Duration(mc.RetryMs) * time.Millisecond,
		}, mirror.TCPFactory(mirror.TCPConfig{
			Endpoint: mc.Endpoint,
			Timeout:  time.Duration(mc.TimeoutMs) * time.Millisecond,
		}), src, m)
		if err != nil {
			return nil, err
		}
		tree.AddEdge(mir)
	}

	return &App{
		Config:  cfg,
		Source:  src,
		Pool:    pool,
		Broker:  b,
		Metrics: m,
		Reload:  reload,
		tree:    tree,
		log:     logging.Component("daemon"),
	}, nil
}

// TriggerReload asks the reloader for a full reload.
func (a *App) TriggerReload() {
	select {
	case a.Reload <- struct{}{}:
	default:
	}
}

// Run serves until ctx is canceled or a core service fails.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().
		Str("addr", a.Broker.Addr().String()).
		Str("status_file", a.Config.StatusFile).
		Int("workers", a.Config.Workers).
		Msg("statusbrokerd serving")

	if err := a.tree.Serve(ctx); err != nil {
		return fmt.Errorf("cli: %w", err)
	}

	a.log.Info().Msg("statusbrokerd stopped")
	return nil
}
