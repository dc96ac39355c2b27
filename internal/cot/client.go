package cot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ClientConfig configures the TAK server connection.
type ClientConfig struct {
	Addr        string // host:port
	TLS         *tls.Config
	DialTimeout time.Duration

	// Reconnect backoff bounds. Backoff doubles from Min to Max and
	// resets after a successful connect.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Client is a reconnecting CoT stream client. Run delivers every
// decoded event to the output channel; delivery is at-least-once across
// reconnects, which the state store's reconciliation rule absorbs.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewClient creates a client. Zero backoff/timeout fields get defaults.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin == 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	return &Client{cfg: cfg, logger: logger}
}

// Run connects and streams events to out until ctx is cancelled. The
// channel is closed on return. Connection failures trigger reconnection
// with capped exponential backoff; Run only returns a non-nil error for
// a cancelled context's cause.
func (c *Client) Run(ctx context.Context, out chan<- *Event) error {
	defer close(out)

	backoff := c.cfg.ReconnectMin
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("cot: connect failed", "addr", c.cfg.Addr, "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.cfg.ReconnectMax)
			continue
		}

		c.setConn(conn)
		c.logger.Info("cot: connected", "addr", c.cfg.Addr)
		backoff = c.cfg.ReconnectMin

		err = c.readLoop(ctx, conn, out)
		c.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			c.logger.Warn("cot: stream error, reconnecting", "error", err)
		} else {
			c.logger.Info("cot: stream closed by peer, reconnecting")
		}
	}
}

// Send serializes an event and writes it to the live connection.
func (c *Client) Send(ev *Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("cot: not connected to %s", c.cfg.Addr)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("cot: send event: %w", err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	if c.cfg.TLS != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: c.cfg.TLS}
		return td.DialContext(ctx, "tcp", c.cfg.Addr)
	}
	return dialer.DialContext(ctx, "tcp", c.cfg.Addr)
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn, out chan<- *Event) error {
	// Unblock the decoder when the context ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	stream := NewStream(conn)
	for {
		ev, err := stream.Next()
		if err != nil {
			return err
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}
