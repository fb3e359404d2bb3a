// internal/codec/request.go
package codec

import (
	"bytes"
	"errors"
	"strings"
)

// ErrMalformedRequest means the request has no delimiter at all.
var ErrMalformedRequest = errors.New("codec: malformed request")

// Request is one decoded query.
type Request struct {
	Credential string
	ServiceID  string
}

// QueryAll reports whether the request asks for every service.
func (r Request) QueryAll() bool {
	return r.ServiceID == ""
}

// Decode parses "credential:serviceId".
//
// Trailing line terminators and padding are ignored. Everything after the
// first delimiter is the service id, so ids may themselves contain ':'.
// An empty service id is valid and means "query all".
func Decode(raw []byte) (Request, error) {
	if i := bytes.IndexByte(raw, PadByte); i >= 0 {
		raw = raw[:i]
	}
	line := strings.TrimRight(string(raw), "\r\n")

	cred, sid, ok := strings.Cut(line, RequestDelimiter)
	if !ok {
		return Request{}, ErrMalformedRequest
	}

	return Request{
		Credential: cred,
		ServiceID:  sid,
	}, nil
}

// EncodeRequest renders a request line, newline-terminated, as clients send it.
func EncodeRequest(r Request) []byte {
	var b strings.Builder
	b.Grow(len(r.Credential) + len(r.ServiceID) + 2)
	b.WriteString(r.Credential)
	b.WriteString(RequestDelimiter)
	b.WriteString(r.ServiceID)
	b.WriteByte('\n')
	return []byte(b.String())
}
