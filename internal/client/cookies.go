package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"chatline/internal/constants"
	"chatline/internal/prefs"
)

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CookieStore carries the API session cookies across runs through prefs.
type CookieStore struct {
	prefs prefs.Store
	jar   http.CookieJar
	url   *url.URL
}

func NewCookieStore(p prefs.Store, jar http.CookieJar, baseURL string) (*CookieStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	return &CookieStore{prefs: p, jar: jar, url: root}, nil
}

// Restore loads saved cookies into the jar.
func (c *CookieStore) Restore(ctx context.Context) error {
	raw, ok, err := c.prefs.Get(ctx, constants.SessionCookiesKey)
	if err != nil || !ok || raw == "" {
		return err
	}

	var saved []savedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return fmt.Errorf("invalid saved session: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(saved))
	for _, s := range saved {
		cookies = append(cookies, &http.Cookie{
			Name:     s.Name,
			Value:    s.Value,
			Path:     "/",
			Secure:   c.url.Scheme == "https",
			HttpOnly: true,
		})
	}
	c.jar.SetCookies(c.url, cookies)
	return nil
}

// Save writes the jar's current cookies. An empty jar clears the saved session.
func (c *CookieStore) Save(ctx context.Context) error {
	cookies := c.jar.Cookies(c.url)
	saved := make([]savedCookie, 0, len(cookies))
	for _, ck := range cookies {
		saved = append(saved, savedCookie{Name: ck.Name, Value: ck.Value})
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return c.prefs.Set(ctx, constants.SessionCookiesKey, string(data))
}
