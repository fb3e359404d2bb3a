// internal/codec/reply.go
package codec

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/tamzrod/status-broker/internal/status"
)

// ErrMalformedFrame means a reply frame has no status prefix.
var ErrMalformedFrame = errors.New("codec: malformed reply frame")

// ReplyCode classifies a reply.
type ReplyCode uint8

const (
	Ok ReplyCode = iota
	NotFound
	AuthFailed
	Malformed
	InternalError
	Busy
)

// String is the code's metric label.
func (c ReplyCode) String() string {
	switch c {
	case Ok:
		return "ok"
	case NotFound:
		return "not_found"
	case AuthFailed:
		return "auth_failed"
	case Malformed:
		return "malformed"
	case Busy:
		return "busy"
	default:
		return "internal_error"
	}
}

// Reply is one answer. For Ok replies State carries the service state
// (or the worst state for an aggregate).
type Reply struct {
	Code    ReplyCode
	State   status.State
	Payload string
}

// ---- constructors ----

// RecordReply answers a single-service lookup.
func RecordReply(r status.Record) Reply {
	return Reply{Code: Ok, State: r.State, Payload: r.State.String()}
}

// AggregateReply answers a query-all: "id=code;id=code" ordered by id,
// with the worst state as the status.
func AggregateReply(s *status.Snapshot) Reply {
	var b strings.Builder
	for i, rec := range s.Records() {
		if i > 0 {
			b.WriteString(AggregateSeparator)
		}
		b.WriteString(rec.ServiceID)
		b.WriteString(AggregateAssign)
		b.WriteString(strconv.Itoa(int(rec.State)))
	}
	return Reply{Code: Ok, State: s.Worst(), Payload: b.String()}
}

func NotFoundReply() Reply   { return Reply{Code: NotFound, Payload: MsgNotFound} }
func AuthFailedReply() Reply { return Reply{Code: AuthFailed, Payload: MsgAuthFailed} }
func MalformedReply() Reply  { return Reply{Code: Malformed, Payload: MsgMalformed} }
func InternalReply() Reply   { return Reply{Code: InternalError, Payload: MsgInternalError} }
func BusyReply() Reply       { return Reply{Code: Busy, Payload: MsgBusy} }

// Status is the numeric prefix written on the wire.
func (r Reply) Status() int {
	switch r.Code {
	case Ok:
		return int(r.State)
	case AuthFailed:
		return StatusAuthFailed
	default:
		return StatusFailure
	}
}

// Body is the unpadded "<status>#<payload>" text.
func (r Reply) Body() string {
	return strconv.Itoa(r.Status()) + ReplyDelimiter + r.Payload
}

// Encode renders a reply as a MaxMessageSize frame, zero-padded.
// A body longer than the frame is truncated.
func Encode(r Reply) []byte {
	frame := make([]byte, MaxMessageSize)
	n := copy(frame, r.Body())
	for i := n; i < len(frame); i++ {
		frame[i] = PadByte
	}
	return frame
}

// DecodeFrame splits a reply frame into its status and payload.
// Bytes from the first PadByte on are ignored.
func DecodeFrame(frame []byte) (int, string, error) {
	if i := bytes.IndexByte(frame, PadByte); i >= 0 {
		frame = frame[:i]
	}

	code, payload, ok := strings.Cut(string(frame), ReplyDelimiter)
	if !ok {
		return 0, "", ErrMalformedFrame
	}

	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, "", ErrMalformedFrame
	}
	return n, payload, nil
}
