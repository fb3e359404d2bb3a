// internal/worker/types.go
package worker

import (
	"time"

	"github.com/tamzrod/status-broker/internal/status"
)

// Authenticator checks a request credential.
type Authenticator interface {
	Check(credential string) bool
}

// SnapshotSource yields the snapshot a request is resolved against.
type SnapshotSource interface {
	Current() (*status.Snapshot, error)
}

// Job is one request in flight between the broker and a worker.
// Reply must be buffered (cap >= 1) so a worker never blocks on a caller
// that has gone away.
type Job struct {
	Payload  []byte
	Reply    chan []byte
	Enqueued time.Time
}

// State is a worker's position in its request cycle.
type State uint32

const (
	Idle State = iota
	Receiving
	Authenticating
	Resolving
	Replying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	case Authenticating:
		return "authenticating"
	case Resolving:
		return "resolving"
	case Replying:
		return "replying"
	default:
		return "invalid"
	}
}
