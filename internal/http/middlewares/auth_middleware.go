package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/jobsheet/internal/actorctx"
	"github.com/geocoder89/jobsheet/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		// Stash useful bits of identity on the context
		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxEmailKey, claims.Email)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	abortJSON(c, http.StatusUnauthorized, "unauthorized", message)
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
