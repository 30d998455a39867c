package sheet

import (
	"context"
	"strings"
)

// AuthView is what the auth gate toggles on the surface.
type AuthView struct {
	LoginVisible  bool
	NewRowVisible bool
	LogoutVisible bool
	Badge         string
}

func viewFor(s *Session) AuthView {
	if s == nil {
		return AuthView{LoginVisible: true}
	}

	badge := s.Email
	if badge == "" {
		badge = badgeFallback
	}

	return AuthView{NewRowVisible: true, LogoutVisible: true, Badge: badge}
}

// onAuthState is the listener registered with the backend. Repeated
// notifications with the same view leave the surface alone.
func (c *Controller) onAuthState(s *Session) {
	v := viewFor(s)

	c.mu.Lock()
	if c.authView != nil && *c.authView == v {
		c.mu.Unlock()
		return
	}
	c.authView = &v
	c.mu.Unlock()

	c.log.Debug("sheet.auth_state", "logged_in", s != nil)
	c.surface.SetAuthView(v)
}

// RequestLoginLink asks the backend to email a login link that returns to the page URL.
func (c *Controller) RequestLoginLink(ctx context.Context, email string) {
	err := c.backend.RequestLoginLink(ctx, strings.TrimSpace(email), c.pageURL)
	if err != nil {
		c.log.Warn("sheet.login_link_failed", "err", err)
		c.surface.SetLoginMessage(msgErrorPrefix + err.Error())
		return
	}

	c.surface.SetLoginMessage(msgLinkSent)
}

// Logout ends the session. The surface changes through the auth listener.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.backend.Logout(ctx); err != nil {
		c.log.Warn("sheet.logout_failed", "err", err)
		c.surface.SetStatus(msgErrorPrefix + err.Error())
	}
}
