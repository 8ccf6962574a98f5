package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatline/internal/constants"
)

type wsConn struct {
	conn        *websocket.Conn
	mu          sync.Mutex
	readTimeout time.Duration
	closeOnce   sync.Once
}

func (d *NetDialer) dialWebSocket(ctx context.Context, userID string) (Conn, error) {
	wsURL, err := endpointURL(d.BaseURL, TransportWebSocket, userID, "")
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{
		ReadBufferSize:   constants.WSBufferSize,
		WriteBufferSize:  constants.WSBufferSize,
		HandshakeTimeout: d.handshakeTimeout(),
		Jar:              d.Jar,
	}

	if d.Log != nil {
		d.Log.DebugContext(ctx, "dialing websocket", "url", wsURL)
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("server returned %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	conn.SetReadLimit(int64(constants.MaxWSMessageSize))

	c := &wsConn{conn: conn, readTimeout: d.handshakeTimeout()}

	p, err := c.ReadPacket()
	if err != nil {
		c.Close()
		return nil, err
	}
	hs, err := decodeHandshake(p)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.readTimeout = time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond

	return c, nil
}

func (c *wsConn) ReadPacket() (Packet, error) {
	var deadline time.Time
	if c.readTimeout > 0 {
		deadline = time.Now().Add(c.readTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return Packet{}, err
	}
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return Packet{}, err
		}
		// binary attachments are not used by this client
		if msgType != websocket.TextMessage {
			continue
		}
		return DecodePacket(string(data))
	}
}

func (c *wsConn) WritePacket(p Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(constants.DialTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(p.Encode()))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) Transport() Transport {
	return TransportWebSocket
}
