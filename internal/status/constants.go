// internal/status/constants.go
package status

// State codes follow the monitoring collector's numeric convention.
// These values are part of the wire protocol and MUST NOT be configurable.
type State uint8

// StateNormal represents a healthy service.
const StateNormal State = 0

// StateWarning represents a degraded service.
const StateWarning State = 1

// StateCritical represents a failed service.
const StateCritical State = 2

// StateUnknown represents a service whose state could not be determined.
const StateUnknown State = 3

// ---- FILE GRAMMAR ----

// FieldSeparator splits the fields of a flat status line.
const FieldSeparator = ","

// CommentPrefix marks a line that carries no record.
const CommentPrefix = "#"

// MaxLineBytes bounds a single status line. Longer lines abort the load.
const MaxLineBytes = 1 << 20

// ---- NAGIOS STANZAS ----

const (
	stanzaService = "servicestatus"
	stanzaHost    = "hoststatus"
)

// ServiceIDSeparator joins host name and service description for service stanzas.
const ServiceIDSeparator = "/"

// String returns the state name used in reply payloads.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "Normal"
	case StateWarning:
		return "Warning"
	case StateCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the four defined states.
func (s State) Valid() bool {
	return s <= StateUnknown
}

// severity orders states for aggregation: an unknown service is worse
// than a warning but better than a hard failure.
func (s State) severity() int {
	switch s {
	case StateNormal:
		return 0
	case StateWarning:
		return 1
	case StateUnknown:
		return 2
	default:
		return 3
	}
}

// Worse reports whether s is more severe than other.
func (s State) Worse(other State) bool {
	return s.severity() > other.severity()
}

// hostState maps a Nagios host state (UP/DOWN/UNREACHABLE) onto service states.
func hostState(code int) (State, bool) {
	switch code {
	case 0:
		return StateNormal, true
	case 1:
		return StateCritical, true
	case 2:
		return StateUnknown, true
	default:
		return 0, false
	}
}
