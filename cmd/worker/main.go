package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/jobsheet/internal/config"
	"github.com/geocoder89/jobsheet/internal/db"
	"github.com/geocoder89/jobsheet/internal/maintenance"
	"github.com/geocoder89/jobsheet/internal/notifications"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/geocoder89/jobsheet/internal/queue/worker"
	"github.com/geocoder89/jobsheet/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "jobsheet-worker",
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

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	usersRepo := postgres.NewUsersRepo(pool)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 3,
			Cooldown:         15 * time.Second,
		},
	)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  250 * time.Millisecond,
		WorkerID:      workerID,
		Concurrency:   4,
		ShutdownGrace: 10 * time.Second,
	}, jobsRepo, notifier, log, prom)

	sched := maintenance.New(maintenance.Config{}, maintenance.Deps{
		LoginLinks:    postgres.NewLoginLinksRepo(pool, usersRepo, jobsRepo, prom),
		RefreshTokens: postgres.NewRefreshTokensRepo(pool),
		Jobs:          jobsRepo,
	}, log)

	if err := sched.Start(); err != nil {
		log.Error("maintenance scheduler failed", "err", err)
		os.Exit(1)
	}

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(pool, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerHealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	sched.Stop(sctx)
	_ = healthSrv.Shutdown(sctx)

	log.Info("worker shutdown complete")
}
