package presence

import (
	"errors"
	"fmt"
)

var (
	ErrClosedByServer   = errors.New("connection closed by server")
	ErrHandshakeTimeout = errors.New("handshake timed out")
	ErrUnexpectedPacket = errors.New("unexpected packet")
	ErrEmptyPacket      = errors.New("empty packet")
	ErrUnknownPacket    = errors.New("unknown packet type")
	ErrClosed           = errors.New("connection closed")
)

// TransportError is a failure of a specific transport. Its message names the
// transport, which is what the fallback policy keys on.
type TransportError struct {
	Transport Transport
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConnectError is a namespace connection refused by the server.
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string {
	return "connect refused: " + e.Message
}
