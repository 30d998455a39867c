package handlers

import (
	"net/http"

	"github.com/geocoder89/jobsheet/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every failed response, wrapped as {"error": ...}.
// The sheet shows Message to the user verbatim.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(ctx *gin.Context, status int, code, message string, details any) {
	ctx.JSON(status, errorEnvelope{Error: APIError{
		Code:      code,
		Message:   message,
		RequestID: middlewares.RequestIDFrom(ctx),
		Details:   details,
	}})
}

func RespondBadRequest(ctx *gin.Context, message string, details any) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

// RespondForbidden is used for the creator-only edit rule.
func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondTooManyRequests(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusTooManyRequests, "rate_limited", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}
