package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned for calls on (or pending when) the connection closes
var ErrClosed = errors.New("host connection closed")

// Invoker is the single generic host call primitive
type Invoker interface {
	Invoke(ctx context.Context, cmd Command, args any) (json.RawMessage, error)
}

// Client talks to the monitor over its socket. Calls may be issued from any
// goroutine; responses are matched to callers by request id.
type Client struct {
	conn    net.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Response
	err     error
	done    chan struct{}
}

// Dial connects to the monitor socket, retrying briefly while it starts up
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	var conn net.Conn
	var err error
	for i := 0; i < 10; i++ {
		conn, err = d.DialContext(ctx, "unix", socketPath)
		if err == nil {
			return NewClient(conn), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("connect to monitor at %s: %w", socketPath, err)
}

// NewClient wraps an established connection
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Invoke sends cmd with args and waits for the response. A context that ends
// first abandons the wait; the host still executes the command.
func (c *Client) Invoke(ctx context.Context, cmd Command, args any) (json.RawMessage, error) {
	req := Request{Command: cmd}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal %s args: %w", cmd, err)
		}
		req.Args = data
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	req.ID = c.nextID
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.send(req); err != nil {
		c.forget(req.ID)
		return nil, fmt.Errorf("send %s: %w", cmd, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, c.closeErr()
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("%s: %s", cmd, resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return nil, ctx.Err()
	}
}

// Close closes the connection; pending calls fail with ErrClosed
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) send(req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

func (c *Client) readLoop() {
	defer close(c.done)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	c.mu.Lock()
	c.err = ErrClosed
	if err := scanner.Err(); err != nil {
		c.err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}
