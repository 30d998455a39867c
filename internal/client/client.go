// Package client is the HTTP backend of the sheet controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/project"
	"github.com/geocoder89/jobsheet/internal/sheet"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        *slog.Logger
}

// Client holds the session tokens in memory only.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	session      *sheet.Session
	listeners    map[int]func(*sheet.Session)
	nextListener int
}

var _ sheet.Backend = (*Client)(nil)

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      hc,
		log:       log,
		listeners: map[int]func(*sheet.Session){},
	}
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	User         *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type meResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type listResponse struct {
	Items []project.Project `json:"items"`
	Count int               `json:"count"`
}

func (c *Client) RequestLoginLink(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email, "redirectTo": redirectTo}
	return c.do(ctx, http.MethodPost, "/auth/login-link", body, nil, false)
}

// Verify signs in from an emailed link, a bare token, or the page URL the
// callback redirected to (access token in the fragment).
func (c *Client) Verify(ctx context.Context, link string) error {
	link = strings.TrimSpace(link)

	if access, ok := accessTokenFromFragment(link); ok {
		c.setTokens(access, "")

		me, err := c.me(ctx)
		if err != nil {
			c.setTokens("", "")
			return err
		}
		c.setSession(&sheet.Session{UserID: me.ID, Email: me.Email})
		return nil
	}

	var res sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify", map[string]string{"token": link}, &res, false); err != nil {
		return err
	}

	c.setTokens(res.AccessToken, res.RefreshToken)

	if res.User != nil && res.User.ID != "" {
		c.setSession(&sheet.Session{UserID: res.User.ID, Email: res.User.Email})
		return nil
	}

	// no identity in the answer: ask for it rather than sign in blind
	me, err := c.me(ctx)
	if err == nil && me.ID == "" {
		err = errNoIdentity
	}
	if err != nil {
		c.setSession(nil)
		return err
	}
	c.setSession(&sheet.Session{UserID: me.ID, Email: me.Email})
	return nil
}

// Logout revokes the refresh token. The local session is dropped even when
// the API call fails.
func (c *Client) Logout(ctx context.Context) error {
	_, refresh := c.tokens()

	var err error
	if refresh != "" {
		err = c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": refresh}, nil, false)
	}

	c.setSession(nil)
	return err
}

// CurrentUser asks the API who the access token belongs to. An expired
// access token is refreshed once; a session the API no longer accepts is
// dropped and reported as anonymous.
func (c *Client) CurrentUser(ctx context.Context) (*sheet.Session, error) {
	if access, _ := c.tokens(); access == "" {
		return nil, nil
	}

	me, err := c.me(ctx)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			c.setSession(nil)
			return nil, nil
		}
		return nil, err
	}

	s := &sheet.Session{UserID: me.ID, Email: me.Email}
	c.setSession(s)
	return copySession(s), nil
}

func (c *Client) me(ctx context.Context) (meResponse, error) {
	var me meResponse
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &me, true)
	return me, err
}

func (c *Client) List(ctx context.Context) ([]project.Project, error) {
	var res listResponse
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &res, false); err != nil {
		return nil, err
	}
	if res.Items == nil {
		res.Items = []project.Project{}
	}
	return res.Items, nil
}

func (c *Client) Insert(ctx context.Context, req project.CreateRequest) (project.Project, error) {
	var p project.Project
	err := c.do(ctx, http.MethodPost, "/projects", req, &p, true)
	return p, err
}

// Update sends {"<column>": value, "updated_at": ts} for row id.
func (c *Client) Update(ctx context.Context, id string, patch project.Patch) (project.Project, error) {
	var p project.Project
	err := c.do(ctx, http.MethodPatch, "/projects/"+url.PathEscape(id), patch, &p, true)
	return p, err
}

// do sends one JSON request. Authenticated calls retry once after a refresh
// when the access token was rejected.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	if authed {
		if access, _ := c.tokens(); access == "" {
			return ErrNotSignedIn
		}
	}

	err := c.send(ctx, method, path, body, out, authed)
	if !authed || !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	if rerr := c.refresh(ctx); rerr != nil {
		c.log.Debug("client.refresh_failed", "err", rerr)
		return err
	}

	return c.send(ctx, method, path, body, out, authed)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any, authed bool) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		access, _ := c.tokens()
		req.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	c.log.Debug("client.request", "method", method, "path", path, "status", res.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) refresh(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return errors.New("no refresh token")
	}

	var res sessionResponse
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refresh}, &res, false); err != nil {
		return err
	}

	c.setTokens(res.AccessToken, res.RefreshToken)
	return nil
}

func accessTokenFromFragment(link string) (string, bool) {
	i := strings.IndexByte(link, '#')
	if i < 0 {
		return "", false
	}

	values, err := url.ParseQuery(link[i+1:])
	if err != nil {
		return "", false
	}

	token := values.Get("access_token")
	return token, token != ""
}
