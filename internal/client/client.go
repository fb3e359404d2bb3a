// internal/client/client.go

// Package client speaks the broker wire protocol from the requesting side.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tamzrod/status-broker/internal/codec"
)

// Result is one decoded reply.
type Result struct {
	Status  int
	Payload string
}

func (r Result) String() string {
	return fmt.Sprintf("%d%s%s", r.Status, codec.ReplyDelimiter, r.Payload)
}

// Client is a single connection. Queries on one Client are sequential.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// Dial connects to a broker at addr. timeout bounds each query round trip;
// 0 means no deadline.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		r:       bufio.NewReaderSize(conn, codec.MaxMessageSize),
		timeout: timeout,
	}, nil
}

// Query asks for one service; an empty serviceID asks for all of them.
func (c *Client) Query(credential, serviceID string) (Result, error) {
	if c == nil || c.conn == nil {
		return Result{}, errors.New("client: not connected")
	}
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	req := codec.EncodeRequest(codec.Request{Credential: credential, ServiceID: serviceID})
	if _, err := c.conn.Write(req); err != nil {
		return Result{}, fmt.Errorf("client: write: %w", err)
	}

	frame := make([]byte, codec.MaxMessageSize)
	if _, err := io.ReadFull(c.r, frame); err != nil {
		return Result{}, fmt.Errorf("client: read: %w", err)
	}

	status, payload, err := codec.DecodeFrame(frame)
	if err != nil {
		return Result{}, fmt.Errorf("client: %w", err)
	}
	return Result{Status: status, Payload: payload}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
