// internal/status/source.go
package status

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tamzrod/status-broker/internal/logging"
	"github.com/tamzrod/status-broker/internal/metrics"
)

// Source owns the current snapshot of one status file.
//
// Readers call Current and never block on a rebuild: a new snapshot is
// built aside and published with a single pointer swap.
type Source struct {
	path    string
	current atomic.Pointer[Snapshot]
	version atomic.Uint64

	loads singleflight.Group

	subMu sync.Mutex
	subs  []chan *Snapshot

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewSource creates a source for path. Nothing is read until the first
// Current or Refresh call.
func NewSource(path string, m *metrics.Metrics) *Source {
	return &Source{
		path:    path,
		log:     logging.Component("status").With().Str("path", path).Logger(),
		metrics: m,
	}
}

// Path returns the status file path.
func (s *Source) Path() string { return s.path }

// Current returns the published snapshot, loading it on first use.
func (s *Source) Current() (*Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return s.Refresh()
}

// Peek returns the published snapshot without loading. It may be nil.
func (s *Source) Peek() *Snapshot {
	return s.current.Load()
}

// Refresh loads the file and publishes the result.
// On failure the previous snapshot stays published and the error is returned.
// Concurrent callers share one load.
func (s *Source) Refresh() (*Snapshot, error) {
	v, err, _ := s.loads.Do("load", func() (interface{}, error) {
		start := time.Now()

		snap, err := Load(s.path)
		if err != nil {
			s.metrics.RefreshFailed()
			s.log.Error().Err(err).Msg("status load failed; keeping previous snapshot")
			return nil, err
		}

		snap.Version = s.version.Add(1)
		s.current.Store(snap)

		elapsed := time.Since(start)
		s.metrics.ObserveRefresh(snap.Len(), snap.Stats.Skipped, snap.Version, elapsed)

		ev := s.log.Info()
		if snap.Stats.Skipped > 0 {
			ev = s.log.Warn()
		}
		ev.Uint64("version", snap.Version).
			Int("records", snap.Len()).
			Int("skipped", snap.Stats.Skipped).
			Dur("took", elapsed).
			Msg("status snapshot published")

		s.notify(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// RefreshIfChanged reloads only when the file's mtime or size differ from
// the published snapshot. It reports whether a new snapshot was published.
func (s *Source) RefreshIfChanged() (bool, error) {
	cur := s.current.Load()

	if cur != nil {
		fi, err := os.Stat(s.path)
		if err != nil {
			s.metrics.RefreshFailed()
			s.log.Error().Err(err).Msg("status stat failed; keeping previous snapshot")
			return false, err
		}
		if fi.ModTime().Equal(cur.ModTime) && fi.Size() == cur.Size {
			return false, nil
		}
	}

	if _, err := s.Refresh(); err != nil {
		return false, err
	}
	return true, nil
}

// Subscribe returns a channel that receives every published snapshot and
// a func that detaches it. Delivery is latest-wins: a slow subscriber only
// sees the newest one. The channel is never closed.
func (s *Source) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subs = append(s.subs, ch)
	if snap := s.current.Load(); snap != nil {
		ch <- snap
	}
	return ch, func() { s.unsubscribe(ch) }
}

func (s *Source) unsubscribe(ch chan *Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, c := range s.subs {
		if c == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Source) notify(snap *Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		// drop a stale pending value, then deliver
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
