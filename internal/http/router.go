package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/jobsheet/internal/auth"
	"github.com/geocoder89/jobsheet/internal/config"
	"github.com/geocoder89/jobsheet/internal/http/handlers"
	"github.com/geocoder89/jobsheet/internal/http/middlewares"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// Deps are the stores and services the API routes need.
type Deps struct {
	Projects handlers.ProjectsStore
	Links    handlers.LoginLinkStore
	Refresh  handlers.RefreshTokenStore
	Users    handlers.UserReader
	Limiter  handlers.LoginLimiter
	JWT      *auth.Manager

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	// Checks back /readyz, keyed by dependency name.
	Checks map[string]handlers.Pinger
}

func NewRouter(log *slog.Logger, deps Deps, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("jobsheet-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{cfg.PublicURL}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	limiter := middlewares.NewRateLimiter(10, 20, 10*time.Minute)

	// health
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(deps.JWT)

	authHandler := handlers.NewAuthHandler(handlers.AuthDeps{
		Links:   deps.Links,
		Refresh: deps.Refresh,
		Users:   deps.Users,
		Limiter: deps.Limiter,
		JWT:     deps.JWT,
		Prom:    deps.Prom,
		Log:     log,
	}, cfg)

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	authGroup.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authGroup.POST("/login-link", middlewares.RequireJSON(), authHandler.RequestLoginLink)
		authGroup.POST("/verify", middlewares.RequireJSON(), authHandler.Verify)
		authGroup.GET("/callback", authHandler.Callback)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)
	}

	projectsHandler := handlers.NewProjectsHandler(deps.Projects, log, deps.Prom)

	projects := r.Group("/projects")
	projects.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	{
		projects.GET("", projectsHandler.List)
		projects.GET("/columns", projectsHandler.Columns)

		write := projects.Group("")
		write.Use(authMW.RequireAuth())
		write.Use(limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
		write.Use(middlewares.RequireJSON())
		write.POST("", projectsHandler.Create)
		write.PATCH("/:id", projectsHandler.Patch)
	}

	return r
}
