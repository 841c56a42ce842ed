package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront/internal/port"
)

var ErrConnBusy = errors.New("connection buffer is full")

// ChanConn delivers notifications into a buffered channel without ever blocking the sender.
type ChanConn struct {
	id string
	ch chan port.Notification

	mu     sync.Mutex
	closed bool
}

func NewChanConn(buffer int) *ChanConn {
	return &ChanConn{
		id: uuid.NewString(),
		ch: make(chan port.Notification, buffer),
	}
}

func (c *ChanConn) ID() string {
	return c.id
}

func (c *ChanConn) Notifications() <-chan port.Notification {
	return c.ch
}

func (c *ChanConn) Send(ctx context.Context, n port.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.ch <- n:
		return nil
	default:
		return ErrConnBusy
	}
}

func (c *ChanConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
