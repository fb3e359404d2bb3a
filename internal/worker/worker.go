// internal/worker/worker.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/status-broker/internal/codec"
	"github.com/tamzrod/status-broker/internal/metrics"
)

// Worker handles one request at a time:
//
//	Idle -> Receiving -> Authenticating -> Resolving -> Replying -> Idle
//
// The blocking receive in Idle is its only suspension point. Failures are
// folded into the reply and never escape the worker.
type Worker struct {
	id    int
	gate  Authenticator
	src   SnapshotSource
	state atomic.Uint32

	log     zerolog.Logger
	metrics *metrics.Metrics

	// trace, when set, observes every state transition. Tests only.
	trace func(State)
}

func newWorker(id int, gate Authenticator, src SnapshotSource, log zerolog.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		id:      id,
		gate:    gate,
		src:     src,
		log:     log.With().Int("worker", id).Logger(),
		metrics: m,
	}
}

// State returns the current state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) enter(s State) {
	w.state.Store(uint32(s))
	if w.trace != nil {
		w.trace(s)
	}
}

// run consumes jobs until ctx is canceled or jobs is closed.
func (w *Worker) run(ctx context.Context, jobs <-chan Job) {
	for {
		w.enter(Idle)

		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.metrics.QueueAdd(-1)
			w.metrics.WorkerBusy(1)

			reply := w.process(job.Payload)

			w.enter(Replying)
			// Reply is buffered; the send never blocks even if the caller left.
			job.Reply <- codec.Encode(reply)

			w.metrics.WorkerBusy(-1)
			w.metrics.ObserveRequest(reply.Code.String(), time.Since(job.Enqueued))
		}
	}
}

// process walks one request through Receiving, Authenticating and Resolving.
func (w *Worker) process(payload []byte) (reply codec.Reply) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Str("panic", fmt.Sprint(r)).Msg("request handling panicked")
			reply = codec.InternalReply()
		}
	}()

	w.enter(Receiving)
	req, err := codec.Decode(payload)
	if err != nil {
		w.log.Debug().Err(err).Msg("malformed request")
		return codec.MalformedReply()
	}

	w.enter(Authenticating)
	if !w.gate.Check(req.Credential) {
		w.log.Debug().Msg("authentication failed")
		return codec.AuthFailedReply()
	}

	w.enter(Resolving)
	return w.resolve(req)
}

func (w *Worker) resolve(req codec.Request) codec.Reply {
	snap, err := w.src.Current()
	if err != nil {
		w.log.Error().Err(err).Msg("no status snapshot available")
		return codec.InternalReply()
	}
	if snap == nil {
		w.log.Error().Err(errors.New("nil snapshot")).Msg("no status snapshot available")
		return codec.InternalReply()
	}

	if req.QueryAll() {
		return codec.AggregateReply(snap)
	}

	rec, ok := snap.Lookup(req.ServiceID)
	if !ok {
		return codec.NotFoundReply()
	}
	return codec.RecordReply(rec)
}
