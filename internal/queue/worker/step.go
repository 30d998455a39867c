package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/job"
	"github.com/geocoder89/jobsheet/internal/jobs"
	"github.com/geocoder89/jobsheet/internal/notifications"
)

// ProcessOne claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	w.metrics.IncClaimed()

	// a claimed job finishes even if shutdown starts meanwhile
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.JobTimeout)
	defer cancel()

	start := w.now()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
	}

	err = w.execute(runCtx, j)

	if w.prom != nil {
		w.prom.JobsInFlight.Dec()
	}
	elapsed := w.now().Sub(start)

	if err != nil {
		return true, w.handleFailure(runCtx, j, err, elapsed)
	}

	if err := w.repo.MarkDone(runCtx, j.ID); err != nil {
		_ = w.repo.MarkFailed(runCtx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.observe(j, "done", elapsed)
	w.log.InfoContext(runCtx, "job done", "job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts)

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(jobs.JobType(j.Type), j.Payload)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case jobs.LoginLinkPayload:
		if p.ExpiresAt.Before(w.now()) {
			return fmt.Errorf("%w: login link expired before delivery", errPermanent)
		}
		return w.notifier.SendLoginLink(ctx, notifications.LoginLinkInput{
			Email:     p.Email,
			URL:       p.URL,
			ExpiresAt: p.ExpiresAt,
			RequestID: p.RequestID,
		})
	default:
		return jobs.ErrInvalidJobType
	}
}

var errPermanent = errors.New("permanent job failure")

func isPermanent(err error) bool {
	return errors.Is(err, errPermanent) ||
		errors.Is(err, jobs.ErrInvalidJobType) ||
		errors.Is(err, jobs.ErrInvalidJobPayload) ||
		errors.Is(err, jobs.ErrPayloadTypeMismatch)
}

// handleFailure retries with backoff until MaxAttempts, then parks the job as failed.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error, elapsed time.Duration) error {
	msg := cause.Error()
	attempt := j.Attempts + 1

	if isPermanent(cause) || attempt >= j.MaxAttempts {
		w.observe(j, "failed", elapsed)
		w.log.ErrorContext(ctx, "job failed", "job_id", j.ID, "job_type", j.Type, "attempts", attempt, "err", cause)

		return w.repo.MarkFailed(ctx, j.ID, msg)
	}

	runAt := w.now().Add(w.backoff(j.Attempts))

	w.observe(j, "retry", elapsed)
	w.log.WarnContext(ctx, "job retry scheduled", "job_id", j.ID, "job_type", j.Type, "attempts", attempt, "run_at", runAt, "err", cause)

	return w.repo.Reschedule(ctx, j.ID, runAt, msg)
}

func (w *Worker) observe(j job.Job, result string, elapsed time.Duration) {
	w.metrics.Finish(result, elapsed, w.now())

	if w.prom == nil {
		return
	}
	w.prom.JobResults.WithLabelValues(j.Type, result).Inc()
	w.prom.JobDuration.WithLabelValues(j.Type, result).Observe(elapsed.Seconds())
}
