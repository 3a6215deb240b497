//go:build !windows
// +build !windows

package rpc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Sandboxed Discord builds put the socket one level down
var ipcSubdirs = []string{"", "app/com.discordapp.Discord", "snap.discord"}

// NewIPCTransport speaks local RPC over the discord-ipc-N unix socket
func NewIPCTransport(logger *zap.Logger, clientID string) *Transport {
	return newTransport(logger, "ipc", func(ctx context.Context) (frameConn, error) {
		return dialIPCPaths(ctx, logger, "unix", ipcPaths(), clientID)
	})
}

// ipcPaths lists socket candidates in lookup order
func ipcPaths() []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	if !seen["/tmp"] {
		dirs = append(dirs, "/tmp")
	}

	var paths []string
	for _, dir := range dirs {
		for _, sub := range ipcSubdirs {
			for i := 0; i < 10; i++ {
				paths = append(paths, filepath.Join(dir, sub, fmt.Sprintf("discord-ipc-%d", i)))
			}
		}
	}
	return paths
}
