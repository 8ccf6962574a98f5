package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/internal/api"
	"chatline/internal/logger"
)

const userJSON = `{"_id":"u1","fullName":"Ada Lovelace","email":"ada@example.com","profilePic":"","createdAt":"2024-05-01T10:00:00.000Z","role":"admin"}`

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Login(t *testing.T) {
	t.Parallel()

	var got api.LoginRequest
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "token-1", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, userJSON)
	})

	c, err := api.New(srv.URL + "/api")
	require.NoError(t, err)

	user, err := c.Login(t.Context(), api.LoginRequest{Email: "ada@example.com", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, api.LoginRequest{Email: "ada@example.com", Password: "secret"}, got)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Ada Lovelace", user.FullName)
	assert.Equal(t, 2024, user.CreatedAt.Year())
	assert.Contains(t, string(user.Raw), `"role":"admin"`)
}

func TestClient_ForwardsCookies(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "token-1", Path: "/"})
			_, _ = io.WriteString(w, userJSON)
		case "/api/auth/check":
			cookie, err := r.Cookie("jwt")
			if err != nil || cookie.Value != "token-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"message":"Unauthorized - No Token Provided"}`)
				return
			}
			_, _ = io.WriteString(w, userJSON)
		}
	})

	c, err := api.New(srv.URL + "/api/")
	require.NoError(t, err)

	_, err = c.CheckAuth(t.Context())
	require.ErrorIs(t, err, api.ErrUnauthorized)

	_, err = c.Login(t.Context(), api.LoginRequest{Email: "a", Password: "b"})
	require.NoError(t, err)

	user, err := c.CheckAuth(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestClient_Endpoints(t *testing.T) {
	t.Parallel()

	type call struct{ method, path string }
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path})
		mu.Unlock()
		if r.URL.Path == "/api/auth/logout" {
			_, _ = io.WriteString(w, `{"message":"Logged out successfully"}`)
			return
		}
		_, _ = io.WriteString(w, userJSON)
	})

	c, err := api.New(srv.URL + "/api")
	require.NoError(t, err)
	ctx := t.Context()

	_, err = c.CheckAuth(ctx)
	require.NoError(t, err)
	_, err = c.Signup(ctx, api.SignupRequest{FullName: "Ada", Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	_, err = c.Login(ctx, api.LoginRequest{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	_, err = c.UpdateProfile(ctx, api.ProfileUpdate{ProfilePic: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))

	assert.Equal(t, []call{
		{http.MethodGet, "/api/auth/check"},
		{http.MethodPost, "/api/auth/signup"},
		{http.MethodPost, "/api/auth/login"},
		{http.MethodPut, "/api/auth/update-profile"},
		{http.MethodPost, "/api/auth/logout"},
	}, calls)
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	t.Run("server message", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
		})
		c, err := api.New(srv.URL + "/api")
		require.NoError(t, err)

		_, err = c.Login(t.Context(), api.LoginRequest{})
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "Invalid credentials", apiErr.Message)
		assert.False(t, errors.Is(err, api.ErrUnauthorized))
		assert.Equal(t, "Invalid credentials", api.Message(err, "Failed to log in"))
	})

	t.Run("no message falls back", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "<html>oops</html>")
		})
		c, err := api.New(srv.URL + "/api")
		require.NoError(t, err)

		_, err = c.Signup(t.Context(), api.SignupRequest{})
		require.Error(t, err)
		assert.Equal(t, "Failed to create account", api.Message(err, "Failed to create account"))
	})

	t.Run("wrapped data is a decode error", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"data":`+userJSON+`}`)
		})
		c, err := api.New(srv.URL + "/api")
		require.NoError(t, err)

		_, err = c.CheckAuth(t.Context())
		var decErr *api.DecodeError
		require.ErrorAs(t, err, &decErr)
		assert.Equal(t, "/auth/check", decErr.Endpoint)
	})

	t.Run("malformed json is a decode error", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"_id":`)
		})
		c, err := api.New(srv.URL + "/api")
		require.NoError(t, err)

		_, err = c.UpdateProfile(t.Context(), api.ProfileUpdate{})
		var decErr *api.DecodeError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := api.New(url + "/api")
		require.NoError(t, err)

		err = c.Logout(t.Context())
		assert.ErrorIs(t, err, api.ErrUnreachable)
		assert.Equal(t, "Failed to log out", api.Message(err, "Failed to log out"))
	})
}

func TestClient_LogsRequests(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var buf bytes.Buffer
	var mu sync.Mutex
	log := logger.New(logger.WithOutput(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	})), logger.WithLevelName("debug"))

	c, err := api.New(srv.URL+"/api", api.WithLogger(log))
	require.NoError(t, err)

	_, err = c.CheckAuth(t.Context())
	require.ErrorIs(t, err, api.ErrUnauthorized)

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	assert.Contains(t, out, `"msg":"request"`)
	assert.Contains(t, out, `"method":"GET"`)
	assert.Contains(t, out, `"msg":"response"`)
	assert.Contains(t, out, `"status":401`)
	assert.True(t, strings.Contains(out, `"level":"WARN"`), out)
}

func TestSocketURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"http://localhost:3000/api":  "http://localhost:3000",
		"http://localhost:3000/api/": "http://localhost:3000",
		"https://chat.example.com":   "https://chat.example.com",
		"https://example.com/v1/api": "https://example.com/v1",
		"https://example.com/apiary": "https://example.com/apiary",
	}
	for in, want := range tests {
		assert.Equal(t, want, api.SocketURL(in), in)
	}

	c, err := api.New("http://localhost:3000/api")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", c.SocketURL())
	assert.NotNil(t, c.Jar())
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
