package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abortJSON stops the chain with the API error envelope. Middlewares cannot
// use the handlers package, which imports this one.
func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": RequestIDFrom(c),
		},
	})
}
