// internal/mirror/mirror.go

// Package mirror copies the status snapshot into a Modbus holding-register
// block so PLCs and HMIs can read service states without speaking the
// broker protocol. Layout is defined by status.EncodeRegisters.
package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/status-broker/internal/logging"
	"github.com/tamzrod/status-broker/internal/metrics"
	"github.com/tamzrod/status-broker/internal/status"
)

// Subscriber publishes snapshots, latest-wins. The returned func detaches
// the channel.
type Subscriber interface {
	Subscribe() (<-chan *status.Snapshot, func())
}

// Config is the minimal runtime config the mirror needs.
type Config struct {
	UnitID      uint8
	BaseAddress uint16
	Services    []string      // one register per id, in order
	RetryEvery  time.Duration // redial and rewrite cadence after a failure
}

// Mirror writes every published snapshot to one endpoint.
type Mirror struct {
	cfg  Config
	dial ClientFactory
	src  Subscriber

	cli Client
	bw  *blockWriter

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a mirror with immutable config.
func New(cfg Config, dial ClientFactory, src Subscriber, m *metrics.Metrics) (*Mirror, error) {
	if dial == nil {
		return nil, errors.New("mirror: client factory required")
	}
	if src == nil {
		return nil, errors.New("mirror: snapshot subscriber required")
	}
	if cfg.RetryEvery <= 0 {
		cfg.RetryEvery = 5 * time.Second
	}
	if int(cfg.BaseAddress)+status.SlotServicesStart+len(cfg.Services) > 0x10000 {
		return nil, errors.New("mirror: register block exceeds address space")
	}
	return &Mirror{
		cfg:     cfg,
		dial:    dial,
		src:     src,
		log:     logging.Component("mirror"),
		metrics: m,
	}, nil
}

func (m *Mirror) String() string { return "status-mirror" }

// Serve writes snapshots as they are published until ctx is canceled.
// A failed write is retried with the latest snapshot every RetryEvery.
func (m *Mirror) Serve(ctx context.Context) error {
	defer m.disconnect()

	snaps, unsubscribe := m.src.Subscribe()
	defer unsubscribe()
	retry := time.NewTicker(m.cfg.RetryEvery)
	defer retry.Stop()

	var pending *status.Snapshot

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-snaps:
			pending = snap
		case <-retry.C:
			if pending == nil {
				continue
			}
		}

		if pending != nil && m.WriteOnce(pending) == nil {
			pending = nil
		}
	}
}

// WriteOnce performs exactly one mirror cycle for snap.
func (m *Mirror) WriteOnce(snap *status.Snapshot) error {
	if err := m.connect(); err != nil {
		m.metrics.MirrorWrite(false)
		m.log.Warn().Err(err).Msg("mirror endpoint unreachable")
		return err
	}

	regs := status.EncodeRegisters(snap, m.cfg.Services)
	n, err := m.bw.Write(regs)
	if err != nil {
		m.metrics.MirrorWrite(false)
		m.log.Warn().Err(err).Msg("mirror write failed")
		m.disconnect()
		return err
	}

	m.metrics.MirrorWrite(true)
	m.log.Debug().Uint64("version", snap.Version).Int("registers", n).Msg("mirror updated")
	return nil
}

func (m *Mirror) connect() error {
	if m.cli != nil {
		return nil
	}
	cli, err := m.dial()
	if err != nil {
		return err
	}
	m.cli = cli
	// a new connection always re-asserts the full block
	m.bw = newBlockWriter(cli, m.cfg.UnitID, m.cfg.BaseAddress)
	return nil
}

func (m *Mirror) disconnect() {
	if m.cli == nil {
		return
	}
	if err := m.cli.Close(); err != nil {
		m.log.Debug().Err(err).Msg("mirror close failed")
	}
	m.cli = nil
	m.bw = nil
}
