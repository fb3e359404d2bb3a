// internal/codec/constants.go
package codec

// Wire format constants.
// These values define the protocol and MUST NOT be configurable.

// MaxMessageSize is the exact size of every reply frame, in bytes.
const MaxMessageSize = 1024

// PadByte fills the unused tail of a reply frame.
// Readers treat everything from the first PadByte on as padding.
const PadByte byte = 0

// RequestDelimiter separates credential and service id in a request.
const RequestDelimiter = ":"

// ReplyDelimiter separates the status code from the payload in a reply.
const ReplyDelimiter = "#"

// AggregateSeparator joins entries of a query-all payload.
const AggregateSeparator = ";"

// AggregateAssign joins service id and state code inside one entry.
const AggregateAssign = "="

// ---- STATUS CODES (reply prefix) ----

// StatusFailure prefixes every non-auth failure reply.
const StatusFailure = -1

// StatusAuthFailed prefixes an authentication failure reply.
const StatusAuthFailed = -2

// ---- FAILURE PAYLOADS ----

const (
	MsgNotFound      = "Not found"
	MsgAuthFailed    = "Wrong authentication"
	MsgMalformed     = "Malformed request"
	MsgInternalError = "Internal error"
	MsgBusy          = "Server busy"
)
