package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is the database readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, readiness, job counters and prometheus metrics.
func (w *Worker) HealthHandler(db Pinger, gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// readiness: loops are running and the database answers
	r.GET("/readyz", func(c *gin.Context) {
		if !w.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/stats", func(c *gin.Context) {
		s := w.metrics.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"claimed":       s.Claimed,
			"done":          s.Done,
			"failed":        s.Failed,
			"retried":       s.Retried,
			"lastFinished":  s.LastFinished,
			"avgDurationMs": s.AverageDuration.Milliseconds(),
			"maxDurationMs": s.MaxDuration.Milliseconds(),
		})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
