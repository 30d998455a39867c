package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/job"
	"github.com/geocoder89/jobsheet/internal/notifications"
	"github.com/geocoder89/jobsheet/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	// JobTimeout bounds a single execution.
	JobTimeout time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
	metrics  *observability.JobMetrics

	backoff func(attempt int) time.Duration
	now     func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, log *slog.Logger, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		log:      log.With("worker_id", cfg.WorkerID),
		prom:     prom,
		metrics:  observability.NewJobMetrics(),
		backoff:  ExponentialBackoff,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Metrics exposes in-process counters for the health server.
func (w *Worker) Metrics() *observability.JobMetrics {
	return w.metrics
}

// Run polls for jobs with cfg.Concurrency loops until ctx is cancelled,
// then waits up to ShutdownGrace for in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	w.log.InfoContext(ctx, "worker started", "concurrency", w.cfg.Concurrency)

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("worker shutdown grace exceeded", "grace", w.cfg.ShutdownGrace)
		return context.DeadlineExceeded
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(ctx)
		if err != nil {
			w.log.ErrorContext(ctx, "process job failed", "err", err)
		}

		// drain quickly while there is work, otherwise poll
		if processed && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}
