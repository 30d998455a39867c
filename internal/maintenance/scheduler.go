package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type StalePurger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type JobsMaintainer interface {
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
	PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error)
}

type Deps struct {
	LoginLinks    StalePurger
	RefreshTokens StalePurger
	Jobs          JobsMaintainer
}

type Config struct {
	// Cron specs, standard five-field syntax or descriptors such as "@hourly".
	PurgeSpec   string
	RequeueSpec string

	// LinkRetention keeps expired links around briefly for troubleshooting.
	LinkRetention time.Duration
	JobRetention  time.Duration
	LockTTL       time.Duration
}

type Scheduler struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	cron *cron.Cron
	now  func() time.Time
}

func New(cfg Config, deps Deps, log *slog.Logger) *Scheduler {
	if cfg.PurgeSpec == "" {
		cfg.PurgeSpec = "@hourly"
	}
	if cfg.RequeueSpec == "" {
		cfg.RequeueSpec = "@every 1m"
	}
	if cfg.LinkRetention <= 0 {
		cfg.LinkRetention = 24 * time.Hour
	}
	if cfg.JobRetention <= 0 {
		cfg.JobRetention = 7 * 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}

	cl := cronLogger{log: log}

	return &Scheduler{
		cfg:  cfg,
		deps: deps,
		log:  log,
		cron: cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the maintenance tasks and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.PurgeSpec, func() { s.Purge(context.Background()) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.RequeueSpec, func() { s.RequeueStale(context.Background()) }); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("maintenance scheduler started", "purge", s.cfg.PurgeSpec, "requeue", s.cfg.RequeueSpec)
	return nil
}

// Stop halts scheduling and waits for running tasks until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Purge deletes expired login links, dead refresh tokens and old finished jobs.
func (s *Scheduler) Purge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := s.now()

	if s.deps.LoginLinks != nil {
		n, err := s.deps.LoginLinks.PurgeStale(ctx, now.Add(-s.cfg.LinkRetention))
		s.report(ctx, "login_links", n, err)
	}
	if s.deps.RefreshTokens != nil {
		n, err := s.deps.RefreshTokens.PurgeStale(ctx, now)
		s.report(ctx, "refresh_tokens", n, err)
	}
	if s.deps.Jobs != nil {
		n, err := s.deps.Jobs.PurgeFinished(ctx, now.Add(-s.cfg.JobRetention))
		s.report(ctx, "jobs", n, err)
	}
}

// RequeueStale returns jobs whose worker died mid-run to the queue.
func (s *Scheduler) RequeueStale(ctx context.Context) {
	if s.deps.Jobs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := s.deps.Jobs.RequeueStaleProcessing(ctx, s.cfg.LockTTL)
	if err != nil {
		s.log.ErrorContext(ctx, "requeue stale jobs failed", "err", err)
		return
	}
	if n > 0 {
		s.log.WarnContext(ctx, "requeued stale jobs", "count", n)
	}
}

func (s *Scheduler) report(ctx context.Context, table string, n int64, err error) {
	if err != nil {
		s.log.ErrorContext(ctx, "maintenance purge failed", "table", table, "err", err)
		return
	}
	s.log.InfoContext(ctx, "maintenance purge", "table", table, "deleted", n)
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
