// internal/codec/codec_test.go
package codec

import (
	"bytes"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/status-broker/internal/status"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Request
		wantErr bool
	}{
		{name: "plain", in: "secret:svc1", want: Request{"secret", "svc1"}},
		{name: "newline", in: "secret:svc1\n", want: Request{"secret", "svc1"}},
		{name: "crlf", in: "secret:svc1\r\n", want: Request{"secret", "svc1"}},
		{name: "padded", in: "secret:svc1\x00\x00\x00", want: Request{"secret", "svc1"}},
		{name: "query all", in: "secret:", want: Request{"secret", ""}},
		{name: "empty credential", in: ":svc1", want: Request{"", "svc1"}},
		{name: "id with delimiter", in: "secret:host:svc", want: Request{"secret", "host:svc"}},
		{name: "no delimiter", in: "secret", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "only newline", in: "\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrMalformedRequest), "err=%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_QueryAll(t *testing.T) {
	assert.True(t, Request{Credential: "x"}.QueryAll())
	assert.False(t, Request{Credential: "x", ServiceID: "a"}.QueryAll())
}

func TestRequestRoundTrip(t *testing.T) {
	const alphabet = "abcXYZ019 _-./#=;,\t"
	rng := rand.New(rand.NewSource(1))

	gen := func() string {
		n := rng.Intn(24)
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		return b.String()
	}

	for i := 0; i < 500; i++ {
		req := Request{Credential: gen(), ServiceID: gen()}

		got, err := Decode(EncodeRequest(req))
		require.NoError(t, err)
		require.Equal(t, req, got)
	}
}

func TestEncode_FixedSizeAndPadding(t *testing.T) {
	frame := Encode(RecordReply(status.Record{ServiceID: "svc1", State: status.StateNormal}))

	require.Len(t, frame, MaxMessageSize)
	body := "0#Normal"
	assert.Equal(t, body, string(frame[:len(body)]))
	assert.Equal(t, bytes.Repeat([]byte{PadByte}, MaxMessageSize-len(body)), frame[len(body):])
}

func TestEncode_Truncates(t *testing.T) {
	frame := Encode(Reply{Code: Ok, State: status.StateWarning, Payload: strings.Repeat("x", 2*MaxMessageSize)})

	require.Len(t, frame, MaxMessageSize)
	assert.Equal(t, "1#", string(frame[:2]))
	assert.Equal(t, -1, bytes.IndexByte(frame, PadByte))
}

func TestEncode_WireTokens(t *testing.T) {
	tests := []struct {
		reply Reply
		want  string
	}{
		{RecordReply(status.Record{State: status.StateCritical}), "2#Critical"},
		{RecordReply(status.Record{State: status.StateWarning}), "1#Warning"},
		{RecordReply(status.Record{State: status.StateUnknown}), "3#Unknown"},
		{NotFoundReply(), "-1#Not found"},
		{AuthFailedReply(), "-2#Wrong authentication"},
		{MalformedReply(), "-1#Malformed request"},
		{InternalReply(), "-1#Internal error"},
		{BusyReply(), "-1#Server busy"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.reply.Body())

		code, payload, err := DecodeFrame(Encode(tt.reply))
		require.NoError(t, err)
		assert.Equal(t, tt.want, strconv.Itoa(code)+ReplyDelimiter+payload)
	}
}

func TestAggregateReply(t *testing.T) {
	snap, err := status.Parse(strings.NewReader("zeta,1\nalpha,0\nmid,2\n"), "mem")
	require.NoError(t, err)

	r := AggregateReply(snap)
	assert.Equal(t, Ok, r.Code)
	assert.Equal(t, "2#alpha=0;mid=2;zeta=1", r.Body())
}

func TestAggregateReply_Empty(t *testing.T) {
	snap, err := status.Parse(strings.NewReader(""), "mem")
	require.NoError(t, err)

	assert.Equal(t, "3#", AggregateReply(snap).Body())
}

func TestDecodeFrame_Malformed(t *testing.T) {
	for _, in := range []string{"", "Normal", "x#Normal", "\x00\x00"} {
		_, _, err := DecodeFrame([]byte(in))
		assert.True(t, errors.Is(err, ErrMalformedFrame), "in=%q", in)
	}
}

func TestReplyCodeLabels(t *testing.T) {
	assert.Equal(t, "ok", Ok.String())
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "auth_failed", AuthFailed.String())
	assert.Equal(t, "malformed", Malformed.String())
	assert.Equal(t, "internal_error", InternalError.String())
	assert.Equal(t, "busy", Busy.String())
}
