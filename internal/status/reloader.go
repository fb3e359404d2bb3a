// internal/status/reloader.go
package status

import (
	"context"
	"errors"
	"time"
)

// Reloader re-reads the status file on a fixed interval and on demand.
// One goroutine. No overlap. No retries beyond the next tick.
type Reloader struct {
	src      *Source
	interval time.Duration
	trigger  <-chan struct{}
}

// NewReloader builds a reloader. trigger may be nil; each value received
// on it forces a full reload even when the file looks unchanged.
func NewReloader(src *Source, interval time.Duration, trigger <-chan struct{}) (*Reloader, error) {
	if src == nil {
		return nil, errors.New("reloader: source required")
	}
	if interval <= 0 {
		return nil, errors.New("reloader: interval must be > 0")
	}
	return &Reloader{src: src, interval: interval, trigger: trigger}, nil
}

// Serve runs until ctx is canceled. Load failures are logged by the
// source and leave the previous snapshot in place.
func (r *Reloader) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			_, _ = r.src.RefreshIfChanged()

		case <-r.trigger:
			r.src.log.Info().Msg("reload requested")
			_, _ = r.src.Refresh()
		}
	}
}

func (r *Reloader) String() string { return "status-reloader" }
