package rpc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IPC opcodes
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
	opPing      uint32 = 3
	opPong      uint32 = 4
)

const (
	ipcVersion   = 1
	maxFrameSize = 1 << 20
)

// ipcConn frames JSON as: uint32 LE opcode | uint32 LE length | body
type ipcConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

func (c *ipcConn) read() ([]byte, error) {
	for {
		op, body, err := readFrame(c.conn)
		if err != nil {
			return nil, err
		}

		switch op {
		case opFrame:
			return body, nil
		case opPing:
			if err := c.writeFrame(context.Background(), opPong, body); err != nil {
				return nil, err
			}
		case opPong:
		case opClose:
			ce := &CloseError{}
			if err := json.Unmarshal(body, ce); err != nil {
				ce.Message = string(body)
			}
			return nil, ce
		default:
			return nil, fmt.Errorf("unknown ipc opcode %d", op)
		}
	}
}

func (c *ipcConn) write(ctx context.Context, data []byte) error {
	return c.writeFrame(ctx, opFrame, data)
}

func (c *ipcConn) writeFrame(ctx context.Context, op uint32, body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return writeFrame(c.conn, op, body)
}

func (c *ipcConn) close() error {
	return c.conn.Close()
}

func writeFrame(w io.Writer, op uint32, body []byte) error {
	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], op)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[8:], body)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	op := binary.LittleEndian.Uint32(header[0:4])
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > maxFrameSize {
		return 0, nil, fmt.Errorf("ipc frame too large: %d bytes", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return op, body, nil
}

// handshakeIPC sends the opening frame on a fresh connection
func handshakeIPC(ctx context.Context, conn net.Conn, clientID string) (*ipcConn, error) {
	c := &ipcConn{conn: conn}
	body, err := json.Marshal(handshake{V: ipcVersion, ClientID: clientID})
	if err != nil {
		return nil, err
	}
	if err := c.writeFrame(ctx, opHandshake, body); err != nil {
		return nil, fmt.Errorf("handshake write failed: %w", err)
	}
	return c, nil
}

// dialIPCPaths tries each socket path in turn and handshakes on the first that answers
func dialIPCPaths(ctx context.Context, logger *zap.Logger, network string, paths []string, clientID string) (frameConn, error) {
	var dialer net.Dialer
	var errs []error
	for _, path := range paths {
		conn, err := dialer.DialContext(ctx, network, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("Discord IPC socket found", zap.String("path", path))
		c, err := handshakeIPC(ctx, conn, clientID)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return c, nil
	}
	if len(errs) == 0 {
		return nil, errors.New("no ipc socket candidates")
	}
	return nil, fmt.Errorf("no Discord IPC socket reachable (tried %d): %w", len(paths), errors.Join(errs...))
}
