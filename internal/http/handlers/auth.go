package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/jobsheet/internal/auth"
	"github.com/geocoder89/jobsheet/internal/config"
	"github.com/geocoder89/jobsheet/internal/domain/user"
	"github.com/geocoder89/jobsheet/internal/http/middlewares"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/geocoder89/jobsheet/internal/ratelimit"
	"github.com/geocoder89/jobsheet/internal/repo/postgres"
	"github.com/geocoder89/jobsheet/internal/security"
	"github.com/gin-gonic/gin"
)

type LoginLinkStore interface {
	Issue(ctx context.Context, in postgres.IssueLoginLinkInput) (user.User, error)
	Consume(ctx context.Context, selector string, check func(hash string) error) (postgres.ConsumedLink, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, row postgres.RefreshTokenRow) error
	Rotate(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error
	Revoke(ctx context.Context, id string) error
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type LoginLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

type AuthHandler struct {
	links   LoginLinkStore
	refresh RefreshTokenStore
	users   UserReader
	limiter LoginLimiter
	jwt     *auth.Manager
	cfg     config.Config
	prom    *observability.Prom
	log     *slog.Logger
}

type AuthDeps struct {
	Links   LoginLinkStore
	Refresh RefreshTokenStore
	Users   UserReader
	// Limiter may be nil; login links are then unlimited.
	Limiter LoginLimiter
	JWT     *auth.Manager
	Prom    *observability.Prom
	Log     *slog.Logger
}

func NewAuthHandler(deps AuthDeps, cfg config.Config) *AuthHandler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		links:   deps.Links,
		refresh: deps.Refresh,
		users:   deps.Users,
		limiter: deps.Limiter,
		jwt:     deps.JWT,
		cfg:     cfg,
		prom:    deps.Prom,
		log:     log,
	}
}

type LoginLinkRequest struct {
	Email      string `json:"email" binding:"required,email"`
	RedirectTo string `json:"redirectTo" binding:"required,url"`
}

type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresIn    int       `json:"expiresIn"`
	User         *userView `json:"user,omitempty"`
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// RequestLoginLink stores a one-time link and queues its delivery by email.
func (h *AuthHandler) RequestLoginLink(ctx *gin.Context) {
	var req LoginLinkRequest

	if !BindJSON(ctx, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !h.redirectAllowed(req.RedirectTo) {
		RespondError(ctx, http.StatusBadRequest, "invalid_redirect", "redirectTo is not an allowed origin", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if h.limiter != nil {
		d, err := h.limiter.Allow(cctx, email)
		if err != nil {
			// redis down: keep sign-in working
			h.log.WarnContext(cctx, "login link rate limit unavailable", "err", err)
		} else if !d.Allowed {
			ctx.Header("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())+1))
			RespondTooManyRequests(ctx, "Too many login links requested. Please try again later.")
			return
		}
	}

	token, err := auth.NewLoginToken()
	if err != nil {
		RespondInternal(ctx, "Could not create login link")
		return
	}

	hash, err := security.HashSecret(token.Verifier)
	if err != nil {
		RespondInternal(ctx, "Could not create login link")
		return
	}

	link := h.cfg.PublicURL + "/auth/callback?token=" + url.QueryEscape(token.String())

	_, err = h.links.Issue(cctx, postgres.IssueLoginLinkInput{
		Email:        email,
		Selector:     token.Selector,
		VerifierHash: hash,
		RedirectTo:   req.RedirectTo,
		ExpiresAt:    time.Now().UTC().Add(h.cfg.LoginLinkTTL()),
		URL:          link,
		RequestID:    middlewares.RequestIDFrom(ctx),
	})
	h.prom.ObserveLoginLink("issue", err)

	if err != nil {
		h.log.ErrorContext(cctx, "issue login link failed", "err", err)
		RespondInternal(ctx, "Could not create login link")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// Callback is the target of the emailed link. It signs the browser in and
// hands the access token to the app in the URL fragment.
func (h *AuthHandler) Callback(ctx *gin.Context) {
	raw := ctx.Query("token")
	if raw == "" {
		RespondBadRequest(ctx, "token is required", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	consumed, err := h.consume(cctx, raw)
	if err != nil {
		h.respondConsumeError(ctx, err)
		return
	}

	access, refreshRaw, refreshExp, err := h.startSession(cctx, consumed.User)
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, refreshRaw, refreshExp)

	fragment := url.Values{}
	fragment.Set("access_token", access)
	fragment.Set("expires_in", strconv.Itoa(int(h.jwt.AccessTTL().Seconds())))
	fragment.Set("token_type", "bearer")

	target := consumed.RedirectTo
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}

	ctx.Redirect(http.StatusSeeOther, target+"#"+fragment.Encode())
}

// Verify consumes a link for clients that cannot follow a browser redirect.
func (h *AuthHandler) Verify(ctx *gin.Context) {
	var req VerifyRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	consumed, err := h.consume(cctx, tokenFromLink(req.Token))
	if err != nil {
		h.respondConsumeError(ctx, err)
		return
	}

	access, refreshRaw, refreshExp, err := h.startSession(cctx, consumed.User)
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, refreshRaw, refreshExp)

	ctx.JSON(http.StatusOK, sessionResponse{
		AccessToken:  access,
		RefreshToken: refreshRaw,
		ExpiresIn:    int(h.jwt.AccessTTL().Seconds()),
		User:         &userView{ID: consumed.User.ID, Email: consumed.User.Email},
	})
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw := h.presentedRefreshToken(ctx)
	if raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(claims.UserID, claims.Email)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	err = h.refresh.Rotate(cctx, claims.JTI, h.jwt.HashRefreshToken(raw), postgres.RefreshTokenRow{
		ID:        newJTI,
		UserID:    claims.UserID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, postgres.ErrRefreshTokenNotFound) || errors.Is(err, postgres.ErrRefreshTokenInvalid) {
			RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
			return
		}
		h.log.ErrorContext(cctx, "rotate refresh token failed", "err", err)
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(claims.UserID, claims.Email)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	ctx.JSON(http.StatusOK, sessionResponse{
		AccessToken:  accessToken,
		RefreshToken: newRaw,
		ExpiresIn:    int(h.jwt.AccessTTL().Seconds()),
	})
}

// Logout revokes the presented refresh token. It always answers 204.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw := h.presentedRefreshToken(ctx)

	if raw != "" {
		if claims, err := h.jwt.VerifyRefreshToken(raw); err == nil {
			cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
			defer cancel()

			if err := h.refresh.Revoke(cctx, claims.JTI); err != nil {
				h.log.WarnContext(cctx, "revoke refresh token failed", "err", err)
			}
		}
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "User no longer exists")
			return
		}
		RespondInternal(ctx, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, userView{ID: u.ID, Email: u.Email})
}

// Helper functions

func (h *AuthHandler) consume(ctx context.Context, raw string) (postgres.ConsumedLink, error) {
	token, err := auth.ParseLoginToken(raw)
	if err != nil {
		return postgres.ConsumedLink{}, err
	}

	consumed, err := h.links.Consume(ctx, token.Selector, func(hash string) error {
		return security.CheckSecret(hash, token.Verifier)
	})
	h.prom.ObserveLoginLink("consume", err)

	return consumed, err
}

func (h *AuthHandler) respondConsumeError(ctx *gin.Context, err error) {
	if errors.Is(err, auth.ErrLinkInvalid) {
		RespondUnAuthorized(ctx, "invalid_link", "Login link is invalid or expired")
		return
	}
	h.log.ErrorContext(ctx.Request.Context(), "consume login link failed", "err", err)
	RespondInternal(ctx, "Could not verify login link")
}

func (h *AuthHandler) startSession(ctx context.Context, u user.User) (string, string, time.Time, error) {
	access, err := h.jwt.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return "", "", time.Time{}, err
	}

	raw, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		return "", "", time.Time{}, err
	}

	err = h.refresh.Create(ctx, postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", "", time.Time{}, err
	}

	return access, raw, expiresAt, nil
}

// redirectAllowed accepts absolute http(s) URLs on an allowed origin or on PUBLIC_URL.
func (h *AuthHandler) redirectAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	origin := u.Scheme + "://" + u.Host

	if strings.EqualFold(origin, originOf(h.cfg.PublicURL)) {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if strings.EqualFold(origin, strings.TrimRight(o, "/")) {
			return true
		}
	}
	return false
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// tokenFromLink accepts either the bare token or the full emailed URL.
func tokenFromLink(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		if t := u.Query().Get("token"); t != "" {
			return t
		}
	}
	return raw
}

func (h *AuthHandler) presentedRefreshToken(ctx *gin.Context) string {
	if raw, err := ctx.Cookie(h.refreshCookieName()); err == nil && raw != "" {
		return raw
	}

	var body refreshBody
	if ctx.Request.ContentLength != 0 {
		_ = ctx.ShouldBindJSON(&body)
	}
	return strings.TrimSpace(body.RefreshToken)
}

func (h *AuthHandler) refreshCookieName() string {
	return "refresh_token"
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteLaxMode)

	ctx.SetCookie(
		h.refreshCookieName(),
		raw,
		maxAge,
		"/auth",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		h.refreshCookieName(),
		"",
		-1,
		"/auth",
		"",
		secure,
		true,
	)
}
