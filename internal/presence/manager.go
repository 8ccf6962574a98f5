// Package presence keeps a realtime connection to the chat server and tracks
// the roster of online users it pushes.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chatline/internal/constants"
	"chatline/internal/logger"
)

// Manager owns at most one realtime connection, keyed by the connected user id.
type Manager struct {
	mu        sync.Mutex
	state     State
	roster    []string
	transport Transport
	userID    string
	conn      Conn
	cancel    context.CancelFunc
	gen       uint64

	transports       []Transport
	attempts         int
	delay            time.Duration
	handshakeTimeout time.Duration
	dialer           Dialer
	log              *slog.Logger
	onRoster         func([]string)
	onState          func(State)

	// used to build the default dialer
	jar        http.CookieJar
	httpClient *http.Client
}

type Option func(*Manager)

// WithTransports sets the transport preference order. The first is the
// primary, the second the fallback; unknown names are ignored.
func WithTransports(transports ...Transport) Option {
	return func(m *Manager) {
		var list []Transport
		for _, t := range transports {
			if (t == TransportWebSocket || t == TransportPolling) && !slices.Contains(list, t) {
				list = append(list, t)
			}
		}
		if len(list) > 0 {
			m.transports = list
		}
	}
}

// WithReconnect bounds automatic retries to attempts, waiting delay between them.
func WithReconnect(attempts int, delay time.Duration) Option {
	return func(m *Manager) {
		m.attempts = max(attempts, 0)
		m.delay = max(delay, 0)
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.handshakeTimeout = d
		}
	}
}

func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithJar sets the cookie jar whose cookies accompany the handshake.
func WithJar(jar http.CookieJar) Option {
	return func(m *Manager) { m.jar = jar }
}

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// OnRoster registers a callback invoked with every roster replacement.
func OnRoster(fn func([]string)) Option {
	return func(m *Manager) { m.onRoster = fn }
}

// OnState registers a callback invoked on every state transition.
func OnState(fn func(State)) Option {
	return func(m *Manager) { m.onState = fn }
}

// New creates a manager for the realtime server at baseURL (the API host
// without its /api suffix).
func New(baseURL string, opts ...Option) *Manager {
	m := &Manager{
		transports:       []Transport{TransportWebSocket, TransportPolling},
		attempts:         constants.DefaultReconnectAttempts,
		delay:            constants.DefaultReconnectDelay,
		handshakeTimeout: constants.WSHandshakeTimeout,
		log:              logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.transport = m.transports[0]

	if m.dialer == nil {
		m.dialer = &NetDialer{
			BaseURL:          baseURL,
			Jar:              m.jar,
			HTTPClient:       m.httpClient,
			HandshakeTimeout: m.handshakeTimeout,
			Log:              m.log,
		}
	}
	return m
}

// Connect starts connecting as userID. It is a no-op when userID is empty or
// a connection is already live or being established.
func (m *Manager) Connect(userID string) {
	if userID == "" {
		m.log.Debug("presence connect skipped: no session")
		return
	}

	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		m.log.Debug("presence connect skipped: already active", slog.String("state", m.State().String()))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.gen++
	gen := m.gen
	m.cancel = cancel
	m.userID = userID
	m.transport = m.transports[0]
	m.state = StateConnecting
	m.mu.Unlock()

	m.log.Info("connecting presence channel", slog.String("user_id", userID))
	m.emitState()

	go m.run(ctx, gen, userID)
}

// Disconnect tears the connection down. The server is told only when the
// connection is established; a pending connect is abandoned either way.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	state, conn, cancel := m.state, m.conn, m.cancel
	if state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.state = StateDisconnected
	m.conn = nil
	m.cancel = nil
	m.userID = ""
	m.roster = nil
	m.mu.Unlock()

	if state == StateConnected && conn != nil {
		m.log.Info("disconnecting presence channel")
		_ = conn.WritePacket(Message{Type: MessageDisconnect}.Packet())
		_ = conn.Close()
	}
	if cancel != nil {
		cancel()
	}

	m.emitState()
	m.emitRoster()
}

// Connected reports whether the connection is established.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Roster returns the last roster pushed by the server.
func (m *Manager) Roster() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.roster)
}

// UserID returns the user the connection is (being) established for.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Transport returns the transport the next (or current) attempt uses.
func (m *Manager) Transport() Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

func (m *Manager) run(ctx context.Context, gen uint64, userID string) {
	log := m.log.With(slog.String("user_id", userID))

	for {
		conn, err := m.dial(ctx, gen, userID, log)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("presence channel gave up", logger.Error(err))
			}
			m.finish(gen)
			return
		}

		if !m.attach(gen, conn) {
			_ = conn.Close()
			return
		}
		log.Info("presence channel connected", slog.String("transport", string(conn.Transport())))

		err = m.readLoop(gen, conn, log)
		_ = conn.Close()

		if !m.update(gen, func() {
			m.conn = nil
			m.state = StateReconnecting
		}) {
			return
		}
		log.Warn("presence channel lost", logger.Error(err))
		m.emitState()
	}
}

// dial tries to open and handshake a connection, retrying with a constant
// delay a bounded number of times. A failure attributed to the current
// transport switches transports and retries once at once; that fallback dial
// does not count against the reconnect budget.
func (m *Manager) dial(ctx context.Context, gen uint64, userID string, log *slog.Logger) (Conn, error) {
	var (
		conn    Conn
		attempt int
	)

	op := func() error {
		attempt++
		transport := m.Transport()

		c, err := m.dialOnce(ctx, transport, userID)
		if err == nil {
			conn = c
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		next := m.switchTransport(gen, transport, err, attempt, log)
		if next == transport {
			return err
		}

		c, err = m.dialOnce(ctx, next, userID)
		if err == nil {
			conn = c
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		m.switchTransport(gen, next, err, attempt, log)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.delay), uint64(m.attempts)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return conn, nil
}

// dialOnce opens one connection over transport and joins the namespace.
func (m *Manager) dialOnce(ctx context.Context, transport Transport, userID string) (Conn, error) {
	c, err := m.dialer.Dial(ctx, transport, userID)
	if err != nil {
		return nil, err
	}
	if err := m.connectNamespace(ctx, c); err != nil {
		_ = c.Close()
		var refused *ConnectError
		if !errors.As(err, &refused) && transportHint(err) == "" {
			err = &TransportError{Transport: transport, Err: err}
		}
		return nil, err
	}
	return c, nil
}

// switchTransport applies the fallback policy to a failed dial and returns
// the transport the next dial uses.
func (m *Manager) switchTransport(gen uint64, transport Transport, err error, attempt int, log *slog.Logger) Transport {
	next := nextTransport(transport, m.transports, err)
	log.Warn("presence connect error",
		slog.Int("attempt", attempt),
		slog.String("transport", string(transport)),
		slog.String("next_transport", string(next)),
		logger.Error(err),
	)
	if next != transport {
		m.update(gen, func() { m.transport = next })
	}
	return next
}

// connectNamespace joins the default namespace and waits for the server's ack.
func (m *Manager) connectNamespace(ctx context.Context, conn Conn) error {
	var timedOut atomic.Bool
	timer := time.AfterFunc(m.handshakeTimeout, func() {
		timedOut.Store(true)
		_ = conn.Close()
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WritePacket(Message{Type: MessageConnect}.Packet()); err != nil {
		return err
	}

	for {
		p, err := conn.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if timedOut.Load() {
				return ErrHandshakeTimeout
			}
			return err
		}

		switch p.Type {
		case PacketPing:
			if err := conn.WritePacket(Packet{Type: PacketPong, Data: p.Data}); err != nil {
				return err
			}
		case PacketClose:
			return ErrClosedByServer
		case PacketMessage:
			msg, err := DecodeMessage(p.Data)
			if err != nil {
				return err
			}
			switch msg.Type {
			case MessageConnect:
				return nil
			case MessageConnectError:
				return &ConnectError{Message: connectErrorMessage(msg)}
			}
		}
	}
}

func (m *Manager) readLoop(gen uint64, conn Conn, log *slog.Logger) error {
	for {
		p, err := conn.ReadPacket()
		if err != nil {
			return err
		}

		switch p.Type {
		case PacketPing:
			if err := conn.WritePacket(Packet{Type: PacketPong, Data: p.Data}); err != nil {
				return err
			}
		case PacketClose:
			return ErrClosedByServer
		case PacketMessage:
			msg, err := DecodeMessage(p.Data)
			if err != nil {
				log.Warn("dropping malformed message", logger.Error(err))
				continue
			}
			switch msg.Type {
			case MessageDisconnect:
				return ErrClosedByServer
			case MessageEvent:
				m.handleEvent(gen, msg, log)
			}
		}
	}
}

func (m *Manager) handleEvent(gen uint64, msg Message, log *slog.Logger) {
	name, args, err := msg.Event()
	if err != nil {
		log.Warn("dropping malformed event", logger.Error(err))
		return
	}
	if name != constants.EventOnlineUsers {
		log.Debug("ignoring event", slog.String("event", name))
		return
	}

	var ids []string
	if len(args) > 0 {
		if err := json.Unmarshal(args[0], &ids); err != nil {
			log.Warn("dropping malformed roster", logger.Error(err))
			return
		}
	}
	if ids == nil {
		ids = []string{}
	}

	if m.update(gen, func() { m.roster = ids }) {
		log.Debug("online users", slog.Any("user_ids", ids))
		m.emitRoster()
	}
}

// attach records conn as the live connection unless the generation moved on.
func (m *Manager) attach(gen uint64, conn Conn) bool {
	ok := m.update(gen, func() {
		m.conn = conn
		m.state = StateConnected
	})
	if ok {
		m.emitState()
	}
	return ok
}

// finish discards the handle after the connect loop gave up.
func (m *Manager) finish(gen uint64) {
	var cancel context.CancelFunc
	ok := m.update(gen, func() {
		cancel = m.cancel
		m.state = StateDisconnected
		m.conn = nil
		m.cancel = nil
		m.userID = ""
		m.roster = nil
		m.gen++
	})
	if !ok {
		return
	}
	if cancel != nil {
		cancel()
	}
	m.emitState()
	m.emitRoster()
}

// update applies fn under the lock if gen is still current.
func (m *Manager) update(gen uint64, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	fn()
	return true
}

// emitState reports the current state rather than the one that triggered the
// call, so a late emit never leaves observers on a stale value.
func (m *Manager) emitState() {
	if m.onState != nil {
		m.onState(m.State())
	}
}

func (m *Manager) emitRoster() {
	if m.onRoster != nil {
		m.onRoster(m.Roster())
	}
}
