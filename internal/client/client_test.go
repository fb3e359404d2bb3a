// internal/client/client_test.go
package client

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/status-broker/internal/codec"
)

// echoServer answers every line with a fixed reply frame and records requests.
func echoServer(t *testing.T, reply codec.Reply) (string, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 4)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			got <- line
			if _, err := conn.Write(codec.Encode(reply)); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), got
}

func TestClient_Query(t *testing.T) {
	addr, got := echoServer(t, codec.NotFoundReply())

	c, err := Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Query("secret", "svc9")
	require.NoError(t, err)
	assert.Equal(t, Result{Status: codec.StatusFailure, Payload: codec.MsgNotFound}, res)
	assert.Equal(t, "-1#Not found", res.String())
	assert.Equal(t, "secret:svc9\n", <-got)

	// same connection, second request
	_, err = c.Query("secret", "")
	require.NoError(t, err)
	assert.Equal(t, "secret:\n", <-got)
}

func TestClient_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), addr, time.Second)
	assert.Error(t, err)
}

func TestClient_NilIsNotConnected(t *testing.T) {
	var c *Client
	_, err := c.Query("secret", "svc1")
	assert.Error(t, err)
	assert.NoError(t, c.Close())
}
