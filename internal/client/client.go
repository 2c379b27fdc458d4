// Package client submits programs to a server and reads their traces and
// result.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mattjoyce/pumpkin/internal/protocol"
)

// DefaultAddr is where the server listens unless configured otherwise.
const DefaultAddr = "127.0.0.1:9981"

// ErrConnectionLost is returned when the connection ends before RESULT.
var ErrConnectionLost = errors.New("connection lost before result")

// Client is one session with the server. Submit calls are serialised; a
// session reads strictly one frame at a time.
type Client struct {
	conn         net.Conn
	maxFrameSize int
	mu           sync.Mutex
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{conn: conn, maxFrameSize: protocol.DefaultMaxFrameSize}
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Submit wraps compiled for tracing, sends it, and blocks until its RESULT
// arrives. onTrace, if set, is called for every TRACE in arrival order.
// Cancelling ctx aborts the read and leaves the connection unusable.
func (c *Client) Submit(ctx context.Context, compiled []byte, onTrace func(value []byte)) (*protocol.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	sub := protocol.NewSubmission()
	if err := protocol.WriteFrame(c.conn, sub.Wrap(compiled)); err != nil {
		return nil, c.failure(ctx, err)
	}

	for {
		payload, err := protocol.ReadFrame(c.conn, c.maxFrameSize)
		if err != nil {
			return nil, c.failure(ctx, err)
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		switch m := msg.(type) {
		case *protocol.Trace:
			if onTrace != nil {
				onTrace(m.Value)
			}
		case *protocol.Result:
			return m, nil
		}
	}
}

func (c *Client) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return err
}
