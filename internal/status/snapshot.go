// internal/status/snapshot.go
package status

import (
	"sort"
	"time"
)

// Record is the health of one monitored service as read from the status file.
// It is never mutated after parsing.
type Record struct {
	ServiceID string
	State     State
	LastCheck time.Time
	Output    string
}

// Stats counts what a load saw.
type Stats struct {
	Valid   int // records accepted (duplicates included)
	Skipped int // malformed lines or stanzas
}

// Snapshot is a point-in-time view of every service in the status file.
// Once published it is shared by all workers and MUST NOT be modified.
type Snapshot struct {
	Path     string
	LoadedAt time.Time
	ModTime  time.Time
	Size     int64
	Version  uint64
	Stats    Stats

	records map[string]Record
	ids     []string // sorted, built once
}

func newSnapshot(path string, records map[string]Record, stats Stats) *Snapshot {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Snapshot{
		Path:     path,
		LoadedAt: time.Now(),
		Stats:    stats,
		records:  records,
		ids:      ids,
	}
}

// Lookup returns the record for a service id.
func (s *Snapshot) Lookup(id string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	r, ok := s.records[id]
	return r, ok
}

// Len is the number of distinct services.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// IDs returns the service ids in ascending order.
// The returned slice is shared; callers must not modify it.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	return s.ids
}

// Records returns all records ordered by service id.
func (s *Snapshot) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.records[id])
	}
	return out
}

// Worst returns the most severe state in the snapshot.
// An empty snapshot reports StateUnknown.
func (s *Snapshot) Worst() State {
	if s.Len() == 0 {
		return StateUnknown
	}
	worst := StateNormal
	for _, r := range s.records {
		if r.State.Worse(worst) {
			worst = r.State
		}
	}
	return worst
}
