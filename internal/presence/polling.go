package presence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatline/internal/constants"
)

const maxPollingPayload = 1 << 20

// pollingConn speaks Engine.IO over HTTP long-polling: a GET returns queued
// packets, a POST delivers outbound ones.
type pollingConn struct {
	client      *http.Client
	url         string
	pollTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	queue     []Packet
	closeOnce sync.Once

	// serializes POSTs; servers reject overlapping ones
	postMu sync.Mutex
}

func (d *NetDialer) dialPolling(ctx context.Context, userID string) (Conn, error) {
	openURL, err := endpointURL(d.BaseURL, TransportPolling, userID, "")
	if err != nil {
		return nil, err
	}

	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Jar: d.Jar}
	}

	if d.Log != nil {
		d.Log.DebugContext(ctx, "opening polling session", "url", openURL)
	}

	hsCtx, hsCancel := context.WithTimeout(ctx, d.handshakeTimeout())
	defer hsCancel()

	packets, err := pollOnce(hsCtx, client, openURL)
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("%w: empty open response", ErrUnexpectedPacket)
	}
	hs, err := decodeHandshake(packets[0])
	if err != nil {
		return nil, err
	}

	sessionURL, err := endpointURL(d.BaseURL, TransportPolling, userID, hs.SID)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &pollingConn{
		client:      client,
		url:         sessionURL,
		pollTimeout: time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond,
		ctx:         connCtx,
		cancel:      cancel,
		queue:       packets[1:],
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = constants.PollingRequestTimeout
	}
	return c, nil
}

func (c *pollingConn) ReadPacket() (Packet, error) {
	for len(c.queue) == 0 {
		if err := c.ctx.Err(); err != nil {
			return Packet{}, ErrClosed
		}
		ctx, cancel := context.WithTimeout(c.ctx, c.pollTimeout)
		packets, err := pollOnce(ctx, c.client, c.url)
		cancel()
		if err != nil {
			if c.ctx.Err() != nil {
				return Packet{}, ErrClosed
			}
			return Packet{}, err
		}
		c.queue = packets
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	return p, nil
}

func (c *pollingConn) WritePacket(p Packet) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	return c.post(c.ctx, EncodePayload(p))
}

func (c *pollingConn) post(ctx context.Context, payload string) error {
	c.postMu.Lock()
	defer c.postMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set(constants.HeaderContentType, "text/plain;charset=UTF-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPollingPayload))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polling post returned %d", resp.StatusCode)
	}
	return nil
}

// Close sends a close packet on a best-effort basis and stops polling.
func (c *pollingConn) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = c.post(ctx, Packet{Type: PacketClose}.Encode())
		cancel()
		c.cancel()
	})
	return nil
}

func (c *pollingConn) Transport() Transport {
	return TransportPolling
}

func pollOnce(ctx context.Context, client *http.Client, rawURL string) ([]Packet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cacheBust(rawURL), nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollingPayload))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polling get returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return DecodePayload(string(body))
}

func cacheBust(rawURL string) string {
	return rawURL + "&t=" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
