package middlewares

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes rejects declared bodies over limit up front and caps the
// reader for chunked ones; BindJSON turns the capped read into a 413.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	msg := "Request body must not exceed " + strconv.FormatInt(limit, 10) + " bytes"

	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			abortJSON(c, http.StatusRequestEntityTooLarge, "payload_too_large", msg)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// RequireJSON accepts POST and PATCH bodies only as application/json.
// Bodyless requests pass, so cookie-only calls keep working.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPatch && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}

		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mt != "application/json" {
			abortJSON(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
			return
		}

		c.Next()
	}
}
