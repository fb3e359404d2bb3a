// internal/natsrelay/relay.go

// Package natsrelay answers status queries arriving over NATS request/reply.
// Each message body is one request line; the reply is the same fixed-size
// frame the TCP broker writes.
package natsrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tamzrod/status-broker/internal/codec"
	"github.com/tamzrod/status-broker/internal/logging"
	"github.com/tamzrod/status-broker/internal/worker"
)

// Dispatcher turns one raw request into one reply frame.
type Dispatcher interface {
	Do(ctx context.Context, payload []byte) ([]byte, error)
}

// Config is the minimal runtime config the relay needs.
type Config struct {
	URL        string
	Subject    string
	QueueGroup string // empty means every relay instance sees every message
}

// Relay bridges a NATS subject to the worker pool.
type Relay struct {
	cfg  Config
	pool Dispatcher
	log  zerolog.Logger

	mu sync.Mutex
	nc *nats.Conn
}

// New validates cfg. The connection is made in Serve.
func New(cfg Config, pool Dispatcher) (*Relay, error) {
	if cfg.URL == "" {
		return nil, errors.New("natsrelay: url required")
	}
	if pool == nil {
		return nil, errors.New("natsrelay: dispatcher required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("natsrelay: subject required")
	}
	return &Relay{
		cfg:  cfg,
		pool: pool,
		log:  logging.Component("natsrelay").With().Str("subject", cfg.Subject).Logger(),
	}, nil
}

func (r *Relay) String() string { return "nats-relay" }

// Serve connects, subscribes and answers requests until ctx is canceled.
// It returns an error if the connection is lost for good.
func (r *Relay) Serve(ctx context.Context) error {
	closed := make(chan struct{})
	var once sync.Once

	nc, err := nats.Connect(r.cfg.URL,
		nats.Name("statusbrokerd"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				r.log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			r.log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			once.Do(func() { close(closed) })
		}),
	)
	if err != nil {
		return fmt.Errorf("natsrelay: connect: %w", err)
	}
	r.setConn(nc)
	defer r.setConn(nil)

	sub, err := nc.QueueSubscribe(r.cfg.Subject, r.cfg.QueueGroup, func(msg *nats.Msg) {
		go r.answer(ctx, msg)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("natsrelay: subscribe: %w", err)
	}

	r.log.Info().Str("queue_group", r.cfg.QueueGroup).Msg("nats relay subscribed")

	select {
	case <-ctx.Done():
		if err := sub.Drain(); err != nil {
			r.log.Debug().Err(err).Msg("drain failed")
		}
		nc.Close()
		return ctx.Err()
	case <-closed:
		return errors.New("natsrelay: connection closed")
	}
}

// Connected reports whether a live NATS connection exists.
func (r *Relay) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nc != nil && r.nc.IsConnected()
}

func (r *Relay) setConn(nc *nats.Conn) {
	r.mu.Lock()
	r.nc = nc
	r.mu.Unlock()
}

func (r *Relay) answer(ctx context.Context, msg *nats.Msg) {
	if msg.Reply == "" {
		r.log.Debug().Msg("message without reply subject dropped")
		return
	}

	frame, err := r.pool.Do(ctx, msg.Data)
	switch {
	case err == nil:
	case errors.Is(err, worker.ErrBusy):
		frame = codec.Encode(codec.BusyReply())
	default:
		return
	}

	if err := msg.Respond(frame); err != nil {
		r.log.Warn().Err(err).Msg("nats reply failed")
	}
}
