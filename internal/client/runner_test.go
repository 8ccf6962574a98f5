package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/internal/config"
	"chatline/internal/constants"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	user := map[string]any{"_id": "u1", "fullName": "Alice", "email": "alice@example.com"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "token", Path: "/", HttpOnly: true})
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("GET /api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("jwt"); err != nil || c.Value != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthorized - No Token Provided"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "", Path: "/", MaxAge: -1})
		_, _ = w.Write([]byte(`{"message":"Logged out successfully"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, apiURL string) config.Config {
	return config.Config{
		APIURL:                  apiURL,
		Env:                     "test",
		LogLevel:                "error",
		LogFormat:               "text",
		SocketTransports:        []string{"websocket"},
		SocketReconnectAttempts: 0,
		SocketHandshakeTimeout:  time.Second,
		LoginConnectDelay:       0,
		PrefsPath:               filepath.Join(t.TempDir(), "prefs.json"),
	}
}

func run(t *testing.T, cfg config.Config, stdin string, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	app, err := New(t.Context(), cfg, strings.NewReader(stdin), &out)
	require.NoError(t, err)
	defer app.Close()
	return app.Run(t.Context(), args), out.String()
}

func TestRun_SessionLifecycle(t *testing.T) {
	srv := newAPIServer(t)
	cfg := testConfig(t, srv.URL+"/api")

	code, out := run(t, cfg, "", "check")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, out, "not logged in")
	assert.NotContains(t, out, constants.MsgCheckAuthFailed)

	code, out = run(t, cfg, "alice@example.com\nwrong\n", "login")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, out, "Invalid credentials")

	code, out = run(t, cfg, "alice@example.com\nsecret1\n", "login")
	assert.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, constants.MsgLoginSuccess)
	assert.Contains(t, out, "Alice")

	// the saved cookie restores the session in a new process
	code, out = run(t, cfg, "", "check")
	assert.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, "alice@example.com")

	code, out = run(t, cfg, "", "logout")
	assert.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, constants.MsgLogoutSuccess)

	code, _ = run(t, cfg, "", "check")
	assert.Equal(t, ExitFailed, code)
}

func TestRun_LogoutUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	code, out := run(t, testConfig(t, srv.URL+"/api"), "", "logout")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, out, constants.MsgLogoutFailed)
}

func TestRun_Theme(t *testing.T) {
	cfg := testConfig(t, "http://localhost:3000/api")

	code, out := run(t, cfg, "", "theme")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, constants.DefaultTheme)

	code, _ = run(t, cfg, "", "theme", "dracula")
	assert.Equal(t, ExitOK, code)

	code, out = run(t, cfg, "", "theme")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "dracula")

	code, out = run(t, cfg, "", "theme", "neon-pink")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, out, "unknown theme")
}

func TestRun_Usage(t *testing.T) {
	cfg := testConfig(t, "http://localhost:3000/api")

	code, out := run(t, cfg, "")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, out, constants.MsgUsage)

	code, out = run(t, cfg, "", "teleport")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, out, `unknown command "teleport"`)

	code, _ = run(t, cfg, "", "profile")
	assert.Equal(t, ExitUsage, code)

	code, out = run(t, cfg, "", "version")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, constants.Version)
}

func TestRun_ProfileRequiresSession(t *testing.T) {
	srv := newAPIServer(t)

	code, out := run(t, testConfig(t, srv.URL+"/api"), "", "profile", "https://cdn.example.com/a.png")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, out, "not logged in")
}

func TestRun_CheckAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Internal Server Error"}`))
	}))
	t.Cleanup(srv.Close)
	cfg := testConfig(t, srv.URL+"/api")

	// no login prompt and no "no saved session" hint after the failed check
	code, out := run(t, cfg, "alice@example.com\nsecret1\n", "watch")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, out, constants.MsgCheckAuthFailed)
	assert.NotContains(t, out, "no saved session")
	assert.NotContains(t, out, "Log in")

	code, out = run(t, cfg, "", "profile", "https://cdn.example.com/a.png")
	assert.Equal(t, ExitFailed, code)
	assert.Contains(t, out, constants.MsgCheckAuthFailed)
	assert.NotContains(t, out, "not logged in")
}
