package client

import (
	"github.com/geocoder89/jobsheet/internal/sheet"
)

// setSession swaps the signed-in identity and notifies listeners when it changed.
func (c *Client) setSession(s *sheet.Session) {
	c.mu.Lock()
	prev := c.session
	c.session = s
	if s == nil {
		c.accessToken = ""
		c.refreshToken = ""
	}
	listeners := make([]func(*sheet.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	if sameSession(prev, s) {
		return
	}

	for _, fn := range listeners {
		fn(copySession(s))
	}
}

// OnAuthStateChange calls fn now with the current session and again on
// every sign-in and sign-out.
func (c *Client) OnAuthStateChange(fn func(*sheet.Session)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	current := copySession(c.session)
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Session returns the cached identity without calling the API.
func (c *Client) Session() *sheet.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySession(c.session)
}

func (c *Client) tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *Client) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	if refresh != "" {
		c.refreshToken = refresh
	}
}

func sameSession(a, b *sheet.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copySession(s *sheet.Session) *sheet.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
