package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"golang.org/x/net/publicsuffix"

	"chatline/internal/constants"
	"chatline/internal/logger"
)

const maxResponseSize = 10 << 20

var errMissingID = errors.New("missing _id")

// Client talks to the chat auth API. Cookies set by the server are kept in
// the client's jar and sent back on every request.
type Client struct {
	baseURL string
	http    *http.Client
	jar     http.CookieJar
	log     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its transport is wrapped
// for diagnostics and its jar is replaced when nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithJar(jar http.CookieJar) Option {
	return func(c *Client) {
		if jar != nil {
			c.jar = jar
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a client for the API rooted at baseURL (e.g. http://localhost:3000/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.jar == nil {
		if c.http.Jar != nil {
			c.jar = c.http.Jar
		} else {
			jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
			if err != nil {
				return nil, fmt.Errorf("failed to create cookie jar: %w", err)
			}
			c.jar = jar
		}
	}

	hc := *c.http
	hc.Jar = c.jar
	hc.Transport = newLoggingTransport(hc.Transport, c.log)
	c.http = &hc

	return c, nil
}

// Jar returns the cookie jar shared with the realtime channel.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SocketURL returns the realtime host: the base URL without its /api suffix.
func (c *Client) SocketURL() string {
	return SocketURL(c.baseURL)
}

// CheckAuth returns the user behind the current session cookie.
func (c *Client) CheckAuth(ctx context.Context) (*User, error) {
	data, err := c.do(ctx, http.MethodGet, constants.EndpointCheck, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(constants.EndpointCheck, data)
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	data, err := c.do(ctx, http.MethodPost, constants.EndpointSignup, req)
	if err != nil {
		return nil, err
	}
	return decodeUser(constants.EndpointSignup, data)
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*User, error) {
	data, err := c.do(ctx, http.MethodPost, constants.EndpointLogin, req)
	if err != nil {
		return nil, err
	}
	return decodeUser(constants.EndpointLogin, data)
}

// Logout ends the server session. The response body is ignored.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, constants.EndpointLogout, nil)
	return err
}

func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdate) (*User, error) {
	data, err := c.do(ctx, http.MethodPut, constants.EndpointUpdateProfile, req)
	if err != nil {
		return nil, err
	}
	return decodeUser(constants.EndpointUpdateProfile, data)
}

func (c *Client) do(ctx context.Context, method, endpoint string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(resp.StatusCode, data)
	}

	return data, nil
}

func decodeUser(endpoint string, data []byte) (*User, error) {
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, &DecodeError{Endpoint: endpoint, Err: err}
	}
	if user.ID == "" {
		return nil, &DecodeError{Endpoint: endpoint, Err: errMissingID}
	}
	user.Raw = json.RawMessage(bytes.Clone(data))
	return &user, nil
}
