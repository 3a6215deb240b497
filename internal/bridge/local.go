package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/genricoloni/ytmpresence/internal/domain"
)

// ErrChannelClosed is returned by Send after Close
var ErrChannelClosed = errors.New("channel closed")

// LocalChannel is an in-process channel with a bounded buffer
type LocalChannel struct {
	mu     sync.RWMutex
	ch     chan domain.Message
	closed bool
}

// NewLocalChannel creates a channel buffering up to size messages
func NewLocalChannel(size int) *LocalChannel {
	return &LocalChannel{ch: make(chan domain.Message, size)}
}

// Send blocks until the message is buffered or ctx ends
func (c *LocalChannel) Send(ctx context.Context, msg domain.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrChannelClosed
	}
	select {
	case c.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the receive side
func (c *LocalChannel) Messages() <-chan domain.Message {
	return c.ch
}

// Close closes the receive side once pending senders are done
func (c *LocalChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
