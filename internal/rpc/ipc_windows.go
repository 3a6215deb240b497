//go:build windows
// +build windows

package rpc

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewIPCTransport returns a transport whose Connect always fails: named-pipe
// IPC is not implemented. Use the websocket transport on Windows.
func NewIPCTransport(logger *zap.Logger, clientID string) *Transport {
	return newTransport(logger, "ipc", func(ctx context.Context) (frameConn, error) {
		return nil, fmt.Errorf("ipc transport is not supported on windows, set YTMP_RELAY_TRANSPORT=websocket")
	})
}
