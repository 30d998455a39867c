package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/job"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func (repo *JobsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	op := "jobs.create_tx"
	var err error

	err = r.observe(
		op, func() error {

			_, err = tx.Exec(ctx, `INSERT INTO jobs(
	 id, type, payload, status, attempts,max_attempts, run_at, locked_at, locked_by, last_error,idempotency_key,user_id, created_at, updated_at
	 ) VALUES (
		$1,$2,$3,$4,
		$5,$6,$7,$8,$9,
		$10,$11,$12,$13,$14
	 
	 )
	 
	 `, j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt, j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey, j.UserID, j.CreatedAt, j.UpdatedAt)
			return err
		},
	)

	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	var tag pgconn.CommandTag
	var err error
	op := "jobs.mark_failed"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}
	return nil
}
func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error
	op := "jobs.mark_done"

	err = r.observe(op, func() error {

		tag, err = r.pool.Exec(ctx,
			`UPDATE jobs
		SET status = 'done',
			locked_at = NULL,
			locked_by = NULL,
			last_error = NULL,
			updated_at = NOW()
		WHERE id = $1
		`, id)

		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	var tag pgconn.CommandTag
	var err error

	op := "jobs.reschedule"

	err = r.observe(op, func() error {
		// Useful for retries/backoff
		tag, err = r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, errMsg)

		return err

	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	// Single statement claim using SKIP LOCKED pattern.
	// Only claims jobs ready to run (pending, run_at <= now), and not exceeded max_attempts.
	var j job.Job
	var status string
	var err error

	op := "jobs.claim_next"

	err = r.observe(op, func() error {
		return r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM jobs
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING id, type, payload, status,
		          attempts, max_attempts,
		          run_at, locked_at, locked_by,
		          last_error,idempotency_key,user_id, created_at, updated_at
	`, workerID).Scan(
			&j.ID, &j.Type, &j.Payload, &status,
			&j.Attempts, &j.MaxAttempts,
			&j.RunAt, &j.LockedAt, &j.LockedBy,
			&j.LastError, &j.IdempotencyKey, &j.UserID, &j.CreatedAt, &j.UpdatedAt,
		)

	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrJobNotFound // treat as “no job available”
		}
		return job.Job{}, err
	}

	j.Status = job.Status(status)
	return j, nil
}

// Requeue a stale processing job i.e lockTTL is greater than the time now i.e it is stale

func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())
	if secs <= 0 {
		secs = 30
	}
	var rows int64
	var err error

	op := "jobs.requeue_stale"
	err = r.observe(op, func() error {
		tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'processing'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - ($1 * INTERVAL '1 second')
	`, secs)

		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil

	})

	return rows, err

}

// PurgeFinished deletes done and failed jobs last touched before cutoff.
func (r *JobsRepo) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	var rows int64

	err := r.observe("jobs.purge_finished", func() error {
		tag, err := r.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('done', 'failed')
		  AND updated_at < $1
	`, cutoff)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})

	return rows, err
}
