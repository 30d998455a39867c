package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything /readyz should wait on (postgres, redis).
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	failed := gin.H{}

	for name, ping := range h.checks {
		if ping == nil {
			continue
		}

		cctx, cancel := context.WithTimeout(ctx.Request.Context(), 1*time.Second)
		err := ping(cctx)
		cancel()

		if err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		RespondError(ctx, http.StatusServiceUnavailable, "not_ready", "Dependencies unavailable", failed)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
