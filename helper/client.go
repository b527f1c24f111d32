package helper

import (
	"net"
	"sync"

	"modlab/errs"
	"modlab/logger"
)

// Client owns the connection to the helper process. The channel is a single
// shared pipe: calls are serialized here and must not be assumed to run in
// parallel even when callers issue them concurrently.
type Client struct {
	socketPath string

	mu   sync.Mutex
	conn net.Conn
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Connect dials the helper socket. Safe to call again after a disconnect.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return errs.ErrHelperUnavailable
	}
	c.conn = conn
	logger.Log.Infow("Helper channel connected", "socket", c.socketPath)
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Connected reports whether the channel is live and authorized.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Call sends one request and waits for its reply. A transport failure tears
// the connection down so the resolver stops offering this tier.
func (c *Client) Call(req Request) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return Result{}, errs.ErrHelperUnavailable
	}
	if err := writeFrame(c.conn, req); err != nil {
		c.dropLocked()
		return Result{}, errs.ErrHelperUnavailable
	}
	var res Result
	if err := readFrame(c.conn, &res); err != nil {
		c.dropLocked()
		return Result{}, errs.ErrHelperUnavailable
	}
	return res, nil
}

func (c *Client) dropLocked() {
	logger.Log.Warnw("Helper channel lost", "socket", c.socketPath)
	_ = c.conn.Close()
	c.conn = nil
}
