// internal/worker/pool.go
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/status-broker/internal/logging"
	"github.com/tamzrod/status-broker/internal/metrics"
)

// ErrBusy means the dispatch queue stayed full for the whole enqueue timeout.
var ErrBusy = errors.New("worker: dispatch queue full")

// Config is the minimal runtime config the pool needs.
type Config struct {
	Size           int           // worker goroutines
	QueueDepth     int           // buffered dispatch slots
	EnqueueTimeout time.Duration // 0 waits as long as ctx allows
}

// Pool is a fixed set of workers fed from one dispatch channel.
// The first idle worker takes the next request.
type Pool struct {
	cfg     Config
	jobs    chan Job
	workers []*Worker

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewPool creates a pool with immutable config. Workers start with Serve.
func NewPool(cfg Config, gate Authenticator, src SnapshotSource, m *metrics.Metrics) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, errors.New("worker: pool size must be > 0")
	}
	if cfg.QueueDepth < 0 {
		return nil, errors.New("worker: queue depth must be >= 0")
	}
	if gate == nil {
		return nil, errors.New("worker: authenticator required")
	}
	if src == nil {
		return nil, errors.New("worker: snapshot source required")
	}

	log := logging.Component("worker")

	p := &Pool{
		cfg:     cfg,
		jobs:    make(chan Job, cfg.QueueDepth),
		log:     log,
		metrics: m,
	}
	for i := 0; i < cfg.Size; i++ {
		p.workers = append(p.workers, newWorker(i, gate, src, log, m))
	}
	return p, nil
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// States returns a point-in-time view of every worker's state.
func (p *Pool) States() []State {
	out := make([]State, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.State()
	}
	return out
}

// Serve runs every worker until ctx is canceled.
func (p *Pool) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.run(ctx, p.jobs)
		}(w)
	}

	p.log.Info().Int("workers", len(p.workers)).Int("queue_depth", p.cfg.QueueDepth).Msg("worker pool started")
	wg.Wait()
	return ctx.Err()
}

func (p *Pool) String() string { return "worker-pool" }

// Do dispatches one raw request and waits for its reply frame.
//
// If no slot frees up within the enqueue timeout it returns ErrBusy. If ctx
// ends while waiting, the worker still finishes the request and its reply
// is discarded.
func (p *Pool) Do(ctx context.Context, payload []byte) ([]byte, error) {
	job := Job{
		Payload:  payload,
		Reply:    make(chan []byte, 1),
		Enqueued: time.Now(),
	}

	if err := p.enqueue(ctx, job); err != nil {
		return nil, err
	}

	select {
	case frame := <-job.Reply:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) enqueue(ctx context.Context, job Job) error {
	// fast path
	select {
	case p.jobs <- job:
		p.metrics.QueueAdd(1)
		return nil
	default:
	}

	var timeout <-chan time.Time
	if p.cfg.EnqueueTimeout > 0 {
		t := time.NewTimer(p.cfg.EnqueueTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case p.jobs <- job:
		p.metrics.QueueAdd(1)
		return nil
	case <-timeout:
		p.metrics.RequestShed()
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}
