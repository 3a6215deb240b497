package rpc

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

// dialFunc opens a frameConn ready for the READY dispatch
type dialFunc func(ctx context.Context) (frameConn, error)

// Transport speaks local RPC over whichever connection dial produces
type Transport struct {
	logger *zap.Logger
	name   string
	dial   dialFunc
	pid    int

	mu     sync.Mutex
	client *client
}

func newTransport(logger *zap.Logger, name string, dial dialFunc) *Transport {
	return &Transport{
		logger: logger.With(zap.String("transport", name)),
		name:   name,
		dial:   dial,
		pid:    os.Getpid(),
	}
}

// Connect dials and waits for READY. Any previous connection is dropped first.
func (t *Transport) Connect(ctx context.Context) (<-chan error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		_ = t.client.close()
		t.client = nil
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s dial failed: %w", t.name, err)
	}

	c := newClient(t.logger, conn)
	if err := c.waitReady(ctx); err != nil {
		_ = c.close()
		return nil, err
	}

	t.client = c
	t.logger.Info("Presence transport connected")
	return c.lost, nil
}

// SetActivity replaces the displayed activity
func (t *Transport) SetActivity(ctx context.Context, activity domain.Activity) error {
	return t.setActivity(ctx, toWire(activity))
}

// ClearActivity sends a null activity
func (t *Transport) ClearActivity(ctx context.Context) error {
	return t.setActivity(ctx, nil)
}

func (t *Transport) setActivity(ctx context.Context, activity *wireActivity) error {
	t.mu.Lock()
	c := t.client
	t.mu.Unlock()

	if c == nil {
		return ErrNotConnected
	}
	_, err := c.command(ctx, cmdSetActivity, setActivityArgs{PID: t.pid, Activity: activity})
	return err
}

// Close drops the connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.close()
	t.client = nil
	return err
}
