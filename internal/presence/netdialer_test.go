package presence

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openPacket = `0{"sid":"%s","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

// engineServer is a minimal realtime server speaking both transports.
type engineServer struct {
	roster          []string
	rejectWebSocket bool
	upgrader        websocket.Upgrader

	mu       sync.Mutex
	users    []string
	cookies  []string
	received []string
	sessions map[string]chan string
	nextSID  int
	posting  int
	overlaps int
}

func newEngineServer(t *testing.T, rejectWebSocket bool, roster ...string) (*engineServer, *httptest.Server) {
	s := &engineServer{roster: roster, rejectWebSocket: rejectWebSocket, sessions: make(map[string]chan string)}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *engineServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" {
		http.NotFound(w, r)
		return
	}
	switch r.URL.Query().Get("transport") {
	case "websocket":
		s.serveWebSocket(w, r)
	case "polling":
		s.servePolling(w, r)
	default:
		http.Error(w, "unknown transport", http.StatusBadRequest)
	}
}

func (s *engineServer) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, r.URL.Query().Get("userId"))
	if c, err := r.Cookie("jwt"); err == nil {
		s.cookies = append(s.cookies, c.Value)
	}
}

func (s *engineServer) receive(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
}

func (s *engineServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.received)
}

func (s *engineServer) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users)
}

func (s *engineServer) Cookies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cookies)
}

func (s *engineServer) Overlaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps
}

func (s *engineServer) rosterPacket() string {
	m, _ := NewEvent("getOnlineUsers", s.roster)
	return m.Packet().Encode()
}

func (s *engineServer) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.rejectWebSocket {
		http.Error(w, "websocket disabled", http.StatusBadRequest)
		return
	}
	s.record(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(openPacket, "ws"))); err != nil {
		return
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg := string(data)
		s.receive(msg)
		if msg == "40" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"ns"}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(s.rosterPacket()))
		}
	}
}

func (s *engineServer) servePolling(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		s.record(r)
		s.mu.Lock()
		s.nextSID++
		sid = fmt.Sprintf("poll%d", s.nextSID)
		s.sessions[sid] = make(chan string, 16)
		s.mu.Unlock()
		fmt.Fprintf(w, openPacket, sid)
		return
	}

	s.mu.Lock()
	queue, ok := s.sessions[sid]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown sid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		select {
		case p := <-queue:
			fmt.Fprint(w, p)
		case <-time.After(100 * time.Millisecond):
			fmt.Fprint(w, "6")
		case <-r.Context().Done():
		}
	case http.MethodPost:
		s.mu.Lock()
		s.posting++
		if s.posting > 1 {
			s.overlaps++
		}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.posting--
			s.mu.Unlock()
		}()
		// widen the window a concurrent POST would land in
		time.Sleep(5 * time.Millisecond)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		packets, err := DecodePayload(string(body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range packets {
			s.receive(p.Encode())
			if p.Encode() == "40" {
				queue <- `40{"sid":"ns"}`
				queue <- s.rosterPacket()
			}
		}
		fmt.Fprint(w, "ok")
	}
}

func jarWithToken(t *testing.T, rawURL string) http.CookieJar {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "jwt", Value: "token", Path: "/"}})
	return jar
}

func TestNetDialer_WebSocket(t *testing.T) {
	server, srv := newEngineServer(t, false, "u1", "u2")

	m := New(srv.URL, WithJar(jarWithToken(t, srv.URL)), WithReconnect(0, 0))
	m.Connect("u1")
	waitState(t, m, StateConnected)

	assert.Equal(t, TransportWebSocket, m.Transport())
	require.Eventually(t, func() bool { return len(m.Roster()) == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"u1", "u2"}, m.Roster())
	assert.Equal(t, []string{"u1"}, server.Users())
	assert.Equal(t, []string{"token"}, server.Cookies())

	m.Disconnect()
	require.Eventually(t, func() bool {
		return slices.Contains(server.Received(), "41")
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"40", "41"}, server.Received())
}

func TestNetDialer_PollingFallback(t *testing.T) {
	server, srv := newEngineServer(t, true, "u3")

	m := New(srv.URL, WithJar(jarWithToken(t, srv.URL)), WithReconnect(2, 10*time.Millisecond))
	m.Connect("u3")
	waitState(t, m, StateConnected)

	assert.Equal(t, TransportPolling, m.Transport())
	require.Eventually(t, func() bool { return len(m.Roster()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"u3"}, m.Roster())
	assert.Equal(t, []string{"u3"}, server.Users())
	assert.Equal(t, []string{"token"}, server.Cookies())

	m.Disconnect()
	require.Eventually(t, func() bool {
		return slices.Contains(server.Received(), "41")
	}, waitFor, 5*time.Millisecond)
}

func TestNetDialer_PollingSerializesWrites(t *testing.T) {
	server, srv := newEngineServer(t, true)

	d := &NetDialer{BaseURL: srv.URL, HandshakeTimeout: time.Second}
	conn, err := d.Dial(t.Context(), TransportPolling, "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, conn.WritePacket(Packet{Type: PacketPong}))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, conn.WritePacket(Message{Type: MessageDisconnect}.Packet()))
	}()
	wg.Wait()
	require.NoError(t, conn.Close())

	assert.Zero(t, server.Overlaps())
	received := server.Received()
	assert.Len(t, received, 6)
	assert.Contains(t, received, "41")
	assert.Contains(t, received, "1")
}

func TestNetDialer_ErrorNamesTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	d := &NetDialer{BaseURL: srv.URL, HandshakeTimeout: time.Second}
	for _, tr := range []Transport{TransportWebSocket, TransportPolling} {
		_, err := d.Dial(t.Context(), tr, "u1")
		require.Error(t, err)

		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, tr, te.Transport)
		assert.Contains(t, err.Error(), string(tr))
		assert.Equal(t, tr, transportHint(err))
	}
}
