package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/geocoder89/jobsheet/internal/auth"
	"github.com/geocoder89/jobsheet/internal/client"
	"github.com/geocoder89/jobsheet/internal/config"
	"github.com/geocoder89/jobsheet/internal/db"
	apphttp "github.com/geocoder89/jobsheet/internal/http"
	"github.com/geocoder89/jobsheet/internal/http/handlers"
	"github.com/geocoder89/jobsheet/internal/notifications"
	"github.com/geocoder89/jobsheet/internal/queue/worker"
	"github.com/geocoder89/jobsheet/internal/ratelimit"
	"github.com/geocoder89/jobsheet/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const pageURL = "http://localhost:5173/"

type env struct {
	pool     *pgxpool.Pool
	srv      *httptest.Server
	projects *postgres.ProjectsRepo
	worker   *worker.Worker
	mailbox  *mailbox
	log      *slog.Logger
}

// mailbox stands in for the email provider and keeps every delivered link.
type mailbox struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *mailbox) SendLoginLink(_ context.Context, in notifications.LoginLinkInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[in.Email] = in.URL
	return nil
}

func (m *mailbox) linkFor(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[email]
}

func testConfig() config.Config {
	return config.Config{
		Env:                    "test",
		JWTSecret:              "test-secret-key",
		JWTAccessTTLMinutes:    60,
		JWTRefreshTTLDays:      7,
		LoginLinkTTLMinutes:    15,
		LoginLinkLimit:         5,
		LoginLinkWindowMinutes: 15,
		PublicURL:              "http://localhost:8080",
		AllowedOrigins:         []string{"http://localhost:5173"},
	}
}

// setupEnv needs TEST_DB_DSN pointing at a disposable database.
func setupEnv(t *testing.T) *env {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: dsn})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	resetDB(t, pool)
	t.Cleanup(func() { resetDB(t, pool) })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := testConfig()

	users := postgres.NewUsersRepo(pool)
	jobsRepo := postgres.NewJobsRepo(pool, nil)
	projects := postgres.NewProjectsRepo(pool, nil)

	router := apphttp.NewRouter(logger, apphttp.Deps{
		Projects: projects,
		Links:    postgres.NewLoginLinksRepo(pool, users, jobsRepo, nil),
		Refresh:  postgres.NewRefreshTokensRepo(pool),
		Users:    users,
		Limiter:  ratelimit.NewFixedWindow(rdb, cfg.LoginLinkLimit, cfg.LoginLinkWindow()),
		JWT:      auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
		Checks:   map[string]handlers.Pinger{"postgres": pool.Ping},
	}, cfg)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	box := &mailbox{links: map[string]string{}}

	return &env{
		pool:     pool,
		srv:      srv,
		projects: projects,
		worker:   worker.New(worker.Config{WorkerID: "integration"}, jobsRepo, box, logger, nil),
		mailbox:  box,
		log:      logger,
	}
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE projects, jobs, login_links, refresh_tokens, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func (e *env) newClient() *client.Client {
	return client.New(client.Config{BaseURL: e.srv.URL, Log: e.log})
}

// signIn requests a link, lets the worker deliver it and follows it.
func (e *env) signIn(t *testing.T, email string) *client.Client {
	t.Helper()
	ctx := context.Background()

	c := e.newClient()
	if err := c.RequestLoginLink(ctx, email, pageURL); err != nil {
		t.Fatalf("request login link: %v", err)
	}

	claimed, err := e.worker.ProcessOne(ctx)
	if err != nil || !claimed {
		t.Fatalf("expected the delivery job to run, claimed=%v err=%v", claimed, err)
	}

	// delivery uses the stored, lowercased address
	link := e.mailbox.linkFor(strings.ToLower(email))
	if link == "" {
		t.Fatalf("no link delivered to %s", email)
	}

	if err := c.Verify(ctx, link); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return c
}
