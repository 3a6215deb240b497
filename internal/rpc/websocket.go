package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsFirstPort = 6463
	wsLastPort  = 6472
	wsOrigin    = "https://discord.com"
)

// wsConn adapts a gorilla connection to frameConn
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) read() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil, &CloseError{Code: ce.Code, Message: ce.Text}
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) close() error {
	return c.conn.Close()
}

// NewWebSocketTransport speaks local RPC over ws://host:6463-6472
func NewWebSocketTransport(logger *zap.Logger, clientID, host string) *Transport {
	if host == "" {
		host = "127.0.0.1"
	}
	ports := make([]int, 0, wsLastPort-wsFirstPort+1)
	for p := wsFirstPort; p <= wsLastPort; p++ {
		ports = append(ports, p)
	}
	return newTransport(logger, "websocket", func(ctx context.Context) (frameConn, error) {
		return dialWebSocket(ctx, logger, host, ports, clientID)
	})
}

func wsURL(host string, port int, clientID string) string {
	q := url.Values{}
	q.Set("v", "1")
	q.Set("client_id", clientID)
	q.Set("encoding", "json")
	u := url.URL{
		Scheme:   "ws",
		Host:     host + ":" + strconv.Itoa(port),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}

// dialWebSocket walks the port range and keeps the first server that upgrades
func dialWebSocket(ctx context.Context, logger *zap.Logger, host string, ports []int, clientID string) (frameConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	header := http.Header{"Origin": {wsOrigin}}

	var lastErr error
	for _, port := range ports {
		conn, resp, err := dialer.DialContext(ctx, wsURL(host, port, clientID), header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return nil, fmt.Errorf("%w: rpc server refused client", ErrAuthentication)
			}
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		conn.SetReadLimit(maxFrameSize)
		logger.Debug("Discord RPC websocket found", zap.Int("port", port))
		return &wsConn{conn: conn}, nil
	}
	return nil, fmt.Errorf("no Discord RPC websocket on ports %d-%d: %w", ports[0], ports[len(ports)-1], lastErr)
}
