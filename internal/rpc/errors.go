// Package rpc implements the presence transports: Discord local RPC over the
// IPC socket or the local websocket, and a bot gateway session.
package rpc

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotConnected is returned when a command is issued without a live connection
	ErrNotConnected = errors.New("not connected")
	// ErrConnectionClosed is returned when the connection drops mid-command
	ErrConnectionClosed = errors.New("connection closed")
	// ErrAuthentication marks a rejected client id or bot token
	ErrAuthentication = errors.New("authentication failed")
)

// lostSignatures are the error texts that mean the connection is gone
var lostSignatures = []string{
	"connection closed",
	"not connected",
	"broken pipe",
	"use of closed network connection",
	"connection reset by peer",
}

// IsConnectionLost reports whether err means the transport must be redialled
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range lostSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsAuthentication reports whether err is a credential rejection
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// CloseError is the peer's close frame
type CloseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed by peer: %d %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match ErrConnectionClosed
func (e *CloseError) Unwrap() error {
	return ErrConnectionClosed
}

// CommandError is an evt:"ERROR" response
type CommandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
