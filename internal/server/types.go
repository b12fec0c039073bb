// Package server defines shared error values, session states and utility
// helpers that are reused across connection, registry and session logic.
package server

import (
	"errors"
	"io"
	"net"
	"strings"
)

var (
	// ErrDisconnected is returned by Connection.Receive once the peer is gone.
	// The transport cause is wrapped around it.
	ErrDisconnected = errors.New("peer disconnected")
	// ErrConnectionClosed is returned when sending to a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendQueueFull is returned when a connection's outbound queue has no room.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrShuttingDown is returned when a connection arrives after Shutdown.
	ErrShuttingDown = errors.New("connection manager shutting down")
	// ErrInvalidParam marks a malformed path parameter.
	ErrInvalidParam = errors.New("invalid path parameter")
)

// SessionState is the lifecycle position of a chat session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
