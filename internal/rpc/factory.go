package rpc

import (
	"fmt"

	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

// Transport kinds accepted by NewPresenceTransport
const (
	KindIPC       = "ipc"
	KindWebSocket = "websocket"
	KindBot       = "bot"
)

// NewPresenceTransport builds the transport named by kind
func NewPresenceTransport(logger *zap.Logger, kind, clientID, botToken string) (domain.PresenceTransport, error) {
	switch kind {
	case KindIPC, "":
		return NewIPCTransport(logger, clientID), nil
	case KindWebSocket:
		return NewWebSocketTransport(logger, clientID, ""), nil
	case KindBot:
		return NewBotTransport(logger, botToken), nil
	default:
		return nil, fmt.Errorf("unknown presence transport %q", kind)
	}
}
