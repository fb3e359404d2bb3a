// internal/broker/broker.go

// Package broker is the network front of the daemon. It accepts client
// connections, reads newline-delimited requests and hands each one to the
// worker pool, writing fixed-size reply frames back in request order.
package broker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/status-broker/internal/codec"
	"github.com/tamzrod/status-broker/internal/logging"
	"github.com/tamzrod/status-broker/internal/metrics"
	"github.com/tamzrod/status-broker/internal/worker"
)

// ErrBind means the listen address could not be bound.
var ErrBind = errors.New("broker: bind failed")

// writeTimeout bounds a single reply write to a slow client.
const writeTimeout = 10 * time.Second

// Dispatcher turns one raw request into one reply frame.
type Dispatcher interface {
	Do(ctx context.Context, payload []byte) ([]byte, error)
}

// Options tune a Broker. The zero value is usable.
type Options struct {
	IdleTimeout time.Duration // 0 keeps idle connections open
	Metrics     *metrics.Metrics
}

// Broker owns the listener and every accepted connection.
type Broker struct {
	ln   net.Listener
	pool Dispatcher
	opts Options

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	log zerolog.Logger
}

// Listen binds host:port. An empty host means all interfaces.
func Listen(host string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s already in use", ErrBind, addr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, addr, err)
	}
	return ln, nil
}

// New wraps an already bound listener.
func New(ln net.Listener, pool Dispatcher, opts Options) (*Broker, error) {
	if ln == nil {
		return nil, errors.New("broker: listener required")
	}
	if pool == nil {
		return nil, errors.New("broker: dispatcher required")
	}
	return &Broker{
		ln:    ln,
		pool:  pool,
		opts:  opts,
		conns: make(map[net.Conn]struct{}),
		log:   logging.Component("broker").With().Str("addr", ln.Addr().String()).Logger(),
	}, nil
}

// Addr is the bound address.
func (b *Broker) Addr() net.Addr { return b.ln.Addr() }

func (b *Broker) String() string { return "broker" }

// Serve accepts connections until ctx is canceled. Open connections are
// closed on shutdown and Serve waits for their handlers to return.
func (b *Broker) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		b.ln.Close()
		b.closeAll()
		return nil
	})

	g.Go(func() error {
		b.log.Info().Msg("broker accepting connections")
		var backoff time.Duration
		for {
			conn, err := b.ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				if errors.Is(err, net.ErrClosed) {
					return fmt.Errorf("broker: accept: %w", err)
				}
				// EMFILE, ECONNABORTED and the like are transient; keep the listener.
				backoff = nextBackoff(backoff)
				b.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(backoff):
				}
				continue
			}
			backoff = 0

			if !b.track(conn) {
				conn.Close()
				return nil
			}
			g.Go(func() error {
				defer b.untrack(conn)
				b.handle(gctx, conn)
				return nil
			})
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// handle serves one connection until the peer leaves, the connection
// idles out or ctx ends. Requests on a connection are answered in order.
func (b *Broker) handle(ctx context.Context, conn net.Conn) {
	log := b.log.With().
		Str("conn", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	b.opts.Metrics.ConnAdd(1)
	defer b.opts.Metrics.ConnAdd(-1)
	defer conn.Close()

	log.Debug().Msg("connection opened")

	// a request longer than one frame can never be valid
	r := bufio.NewReaderSize(conn, codec.MaxMessageSize)

	for {
		if b.opts.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(b.opts.IdleTimeout))
		}

		line, err := r.ReadSlice('\n')
		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			log.Warn().Int("limit", codec.MaxMessageSize).Msg("request too long")
			if !discardLine(r) || !b.write(conn, codec.Encode(codec.MalformedReply()), log) {
				return
			}
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			// last request without a trailing newline
		default:
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("connection closed")
			}
			return
		}

		frame, derr := b.pool.Do(ctx, line)
		switch {
		case derr == nil:
		case errors.Is(derr, worker.ErrBusy):
			log.Warn().Msg("dispatch queue full, request shed")
			frame = codec.Encode(codec.BusyReply())
		default:
			return
		}

		if !b.write(conn, frame, log) {
			return
		}
		if errors.Is(err, io.EOF) {
			return
		}
	}
}

// discardLine drops the rest of an overlong line. It reports false if the
// connection ended first.
func discardLine(r *bufio.Reader) bool {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil {
			return true
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return false
		}
	}
}

func (b *Broker) write(conn net.Conn, frame []byte, log zerolog.Logger) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(frame); err != nil {
		log.Warn().Err(err).Msg("reply write failed")
		return false
	}
	return true
}

func (b *Broker) track(conn net.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conns == nil {
		return false
	}
	b.conns[conn] = struct{}{}
	return true
}

func (b *Broker) untrack(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conns != nil {
		delete(b.conns, conn)
	}
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		c.Close()
	}
	b.conns = nil
}
