package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// frameConn is one message-oriented connection to the RPC server
type frameConn interface {
	// read returns the next JSON payload; control frames are handled inside
	read() ([]byte, error)
	write(ctx context.Context, data []byte) error
	close() error
}

// client multiplexes nonce-tagged commands over a frameConn. A single reader
// goroutine owns the read side.
type client struct {
	logger *zap.Logger
	conn   frameConn

	mu      sync.Mutex
	pending map[string]chan payload

	ready chan payload
	lost  chan error
	done  chan struct{}
	err   error

	closeOnce sync.Once
}

func newClient(logger *zap.Logger, conn frameConn) *client {
	c := &client{
		logger:  logger,
		conn:    conn,
		pending: make(map[string]chan payload),
		ready:   make(chan payload, 1),
		lost:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *client) readLoop() {
	for {
		data, err := c.conn.read()
		if err != nil {
			c.fail(err)
			return
		}

		var p payload
		if err := json.Unmarshal(data, &p); err != nil {
			c.logger.Debug("Ignoring malformed RPC payload", zap.Error(err))
			continue
		}

		if p.Nonce != "" {
			c.mu.Lock()
			ch, ok := c.pending[p.Nonce]
			delete(c.pending, p.Nonce)
			c.mu.Unlock()
			if ok {
				ch <- p
			}
			continue
		}

		if p.Cmd == cmdDispatch && (p.Evt == evtReady || p.Evt == evtError) {
			select {
			case c.ready <- p:
			default:
			}
			continue
		}

		c.logger.Debug("Unhandled RPC event", zap.String("cmd", p.Cmd), zap.String("evt", p.Evt))
	}
}

// fail records the terminal error once and wakes every waiter
func (c *client) fail(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		c.lost <- err
		close(c.lost)
		_ = c.conn.close()
	})
}

// waitReady blocks until the READY dispatch. A peer close before READY is a
// credential rejection.
func (c *client) waitReady(ctx context.Context) error {
	select {
	case p := <-c.ready:
		if p.Evt == evtError {
			return fmt.Errorf("%w: %v", ErrAuthentication, commandError(p))
		}
		c.logger.Debug("RPC ready")
		return nil
	case <-c.done:
		var ce *CloseError
		if errors.As(c.err, &ce) {
			return fmt.Errorf("%w: %v", ErrAuthentication, ce)
		}
		return fmt.Errorf("handshake failed: %w", c.err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// command sends cmd with a fresh nonce and waits for the matching response
func (c *client) command(ctx context.Context, cmd string, args interface{}) (payload, error) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return payload{}, fmt.Errorf("failed to encode args: %w", err)
	}

	nonce := uuid.NewString()
	data, err := json.Marshal(payload{Cmd: cmd, Args: rawArgs, Nonce: nonce})
	if err != nil {
		return payload{}, fmt.Errorf("failed to encode command: %w", err)
	}

	resp := make(chan payload, 1)
	c.mu.Lock()
	c.pending[nonce] = resp
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, nonce)
		c.mu.Unlock()
	}()

	select {
	case <-c.done:
		return payload{}, fmt.Errorf("%w: %v", ErrConnectionClosed, c.err)
	default:
	}

	if err := c.conn.write(ctx, data); err != nil {
		return payload{}, fmt.Errorf("failed to write %s: %w", cmd, err)
	}

	select {
	case p := <-resp:
		if p.Evt == evtError {
			return p, commandError(p)
		}
		return p, nil
	case <-c.done:
		return payload{}, fmt.Errorf("%w: %v", ErrConnectionClosed, c.err)
	case <-ctx.Done():
		return payload{}, ctx.Err()
	}
}

func (c *client) close() error {
	c.fail(ErrConnectionClosed)
	return nil
}

func commandError(p payload) error {
	ce := &CommandError{}
	if err := json.Unmarshal(p.Data, ce); err != nil || ce.Message == "" {
		ce.Message = string(p.Data)
	}
	return ce
}
