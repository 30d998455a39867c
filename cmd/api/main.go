package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/jobsheet/internal/auth"
	"github.com/geocoder89/jobsheet/internal/config"
	"github.com/geocoder89/jobsheet/internal/db"
	httpx "github.com/geocoder89/jobsheet/internal/http"
	"github.com/geocoder89/jobsheet/internal/http/handlers"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/geocoder89/jobsheet/internal/ratelimit"
	"github.com/geocoder89/jobsheet/internal/redisclient"
	"github.com/geocoder89/jobsheet/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "jobsheet-api",
			Endpoint:    cfg.OTLPEndpoint,
			Env:         cfg.Env,
		})
		if err != nil {
			log.Warn("tracing disabled", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DBURL, MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	mctx, cancel := config.WithTimeout(10 * time.Second)
	err = db.Migrate(mctx, pool)
	cancel()
	if err != nil {
		log.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	rdb, err := redisclient.New(redisclient.Config{
		URL:      cfg.RedisURL,
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Error("redis config invalid", "err", err)
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	router := httpx.NewRouter(log, httpx.Deps{
		Projects: postgres.NewProjectsRepo(pool, prom),
		Links:    postgres.NewLoginLinksRepo(pool, usersRepo, jobsRepo, prom),
		Refresh:  postgres.NewRefreshTokensRepo(pool),
		Users:    usersRepo,
		Limiter:  ratelimit.NewFixedWindow(rdb.Cmdable(), cfg.LoginLinkLimit, cfg.LoginLinkWindow()),
		JWT:      auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
		Prom:     prom,
		Gatherer: reg,
		Checks: map[string]handlers.Pinger{
			"postgres": pool.Ping,
			"redis":    rdb.Ping,
		},
	}, cfg)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
