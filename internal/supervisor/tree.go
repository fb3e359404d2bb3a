// internal/supervisor/tree.go

// Package supervisor runs the daemon's long-lived components under a suture
// tree. Core services (broker, worker pool, reloader) end the process when
// they fail; edge services (mirror, NATS relay, metrics endpoint) are
// restarted with backoff.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tamzrod/status-broker/internal/logging"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	FailureThreshold float64       // failures before backoff; default 5
	FailureDecay     float64       // seconds; default 30
	FailureBackoff   time.Duration // default 15s
	ShutdownTimeout  time.Duration // default 10s
}

// DefaultTreeConfig matches suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the two-layer supervision tree.
type Tree struct {
	root *suture.Supervisor
	core *suture.Supervisor
	edge *suture.Supervisor
	log  zerolog.Logger

	mu     sync.Mutex
	fatal  error
	cancel context.CancelFunc
}

// NewTree creates a tree. Zero config fields take defaults.
func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	log := logging.Component("supervisor")

	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = eventHook(log)

	t := &Tree{
		root: suture.New("statusbrokerd", rootSpec),
		core: suture.New("core", childSpec),
		edge: suture.New("edge", childSpec),
		log:  log,
	}
	t.root.Add(t.core)
	t.root.Add(t.edge)
	return t
}

// AddCore adds a service whose failure stops the whole tree.
func (t *Tree) AddCore(svc suture.Service) suture.ServiceToken {
	return t.core.Add(&critical{svc: svc, tree: t})
}

// AddEdge adds a service that is restarted on failure.
func (t *Tree) AddEdge(svc suture.Service) suture.ServiceToken {
	return t.edge.Add(svc)
}

// Serve blocks until ctx is canceled or a core service fails. It returns
// nil on a requested shutdown and the core failure otherwise.
func (t *Tree) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	err := t.root.Serve(ctx)

	if fatal := t.Fatal(); fatal != nil {
		return fatal
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		return err
	}
	return nil
}

// Fatal is the first core failure, if any.
func (t *Tree) Fatal() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fatal
}

func (t *Tree) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fatal == nil {
		t.fatal = err
	}
	if t.cancel != nil {
		t.cancel()
	}
}

// critical turns any unrequested exit into a tree shutdown.
type critical struct {
	svc  suture.Service
	tree *Tree
}

func (c *critical) Serve(ctx context.Context) error {
	err := c.svc.Serve(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("exited unexpectedly")
	}
	err = fmt.Errorf("%s: %w", c, err)
	c.tree.fail(err)
	return fmt.Errorf("%w: %v", suture.ErrTerminateSupervisorTree, err)
}

func (c *critical) String() string { return fmt.Sprint(c.svc) }

// eventHook logs suture lifecycle events through zerolog.
func eventHook(log zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch ev := e.(type) {
		case suture.EventServicePanic:
			log.Error().
				Str("supervisor", ev.SupervisorName).
				Str("service", ev.ServiceName).
				Str("panic", ev.PanicMsg).
				Bool("restarting", ev.Restarting).
				Msg("service panicked")
		case suture.EventServiceTerminate:
			log.Warn().
				Str("supervisor", ev.SupervisorName).
				Str("service", ev.ServiceName).
				Str("err", fmt.Sprint(ev.Err)).
				Bool("restarting", ev.Restarting).
				Msg("service terminated")
		case suture.EventBackoff:
			log.Warn().Str("supervisor", ev.SupervisorName).Msg("supervisor backing off")
		case suture.EventResume:
			log.Info().Str("supervisor", ev.SupervisorName).Msg("supervisor resumed")
		case suture.EventStopTimeout:
			log.Error().
				Str("supervisor", ev.SupervisorName).
				Str("service", ev.ServiceName).
				Msg("service did not stop in time")
		default:
			log.Debug().Msg(e.String())
		}
	}
}
