package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatline/internal/constants"
)

// Transport is the mechanism carrying realtime packets.
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportPolling   Transport = "polling"
)

// Conn is an open Engine.IO connection. ReadPacket is called from a single
// goroutine; WritePacket and Close may be called concurrently with it.
type Conn interface {
	ReadPacket() (Packet, error)
	WritePacket(p Packet) error
	Close() error
	Transport() Transport
}

// Dialer opens a connection over the given transport for userID.
type Dialer interface {
	Dial(ctx context.Context, t Transport, userID string) (Conn, error)
}

// DialFunc adapts a function to a Dialer.
type DialFunc func(ctx context.Context, t Transport, userID string) (Conn, error)

func (f DialFunc) Dial(ctx context.Context, t Transport, userID string) (Conn, error) {
	return f(ctx, t, userID)
}

// NetDialer dials the realtime server at BaseURL over websocket or HTTP long-polling.
type NetDialer struct {
	BaseURL          string
	Jar              http.CookieJar
	HTTPClient       *http.Client
	HandshakeTimeout time.Duration
	Log              *slog.Logger
}

func (d *NetDialer) Dial(ctx context.Context, t Transport, userID string) (Conn, error) {
	var (
		conn Conn
		err  error
	)
	switch t {
	case TransportWebSocket:
		conn, err = d.dialWebSocket(ctx, userID)
	case TransportPolling:
		conn, err = d.dialPolling(ctx, userID)
	default:
		err = fmt.Errorf("unsupported transport %q", t)
	}
	if err != nil {
		return nil, &TransportError{Transport: t, Err: err}
	}
	return conn, nil
}

func (d *NetDialer) handshakeTimeout() time.Duration {
	if d.HandshakeTimeout > 0 {
		return d.HandshakeTimeout
	}
	return constants.WSHandshakeTimeout
}

// endpointURL builds the Engine.IO endpoint for the transport.
func endpointURL(baseURL string, t Transport, userID, sid string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", err
	}
	if t == TransportWebSocket {
		switch u.Scheme {
		case "https", "wss":
			u.Scheme = "wss"
		default:
			u.Scheme = "ws"
		}
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + constants.SocketPath

	q := u.Query()
	q.Set("EIO", constants.SocketProtocolVersion)
	q.Set("transport", string(t))
	q.Set(constants.SocketUserIDParam, userID)
	if sid != "" {
		q.Set("sid", sid)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// transportHint extracts the transport a failure is attributed to.
func transportHint(err error) Transport {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Transport
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, string(TransportWebSocket)):
		return TransportWebSocket
	case strings.Contains(msg, string(TransportPolling)), strings.Contains(msg, "xhr poll"):
		return TransportPolling
	}
	return ""
}

// nextTransport applies the fallback policy: a failure on the primary moves
// to the fallback, a failure on the fallback moves back to the primary.
func nextTransport(current Transport, transports []Transport, err error) Transport {
	if len(transports) < 2 {
		return current
	}
	primary, fallback := transports[0], transports[1]
	switch transportHint(err) {
	case primary:
		return fallback
	case fallback:
		return primary
	}
	return current
}
