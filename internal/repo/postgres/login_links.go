package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/jobsheet/internal/auth"
	"github.com/geocoder89/jobsheet/internal/domain/job"
	"github.com/geocoder89/jobsheet/internal/domain/user"
	"github.com/geocoder89/jobsheet/internal/jobs"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IssueLoginLinkInput struct {
	Email        string
	Selector     string
	VerifierHash string
	RedirectTo   string
	ExpiresAt    time.Time
	// URL is the clickable link; it goes into the delivery job only.
	URL       string
	RequestID string
}

type ConsumedLink struct {
	User       user.User
	RedirectTo string
}

type LoginLinksRepo struct {
	pool  *pgxpool.Pool
	users *UsersRepo
	jobs  *JobsRepo
	prom  *observability.Prom
}

func NewLoginLinksRepo(pool *pgxpool.Pool, users *UsersRepo, jobsRepo *JobsRepo, prom *observability.Prom) *LoginLinksRepo {
	return &LoginLinksRepo{pool: pool, users: users, jobs: jobsRepo, prom: prom}
}

func (r *LoginLinksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Issue upserts the user, stores the link and enqueues its delivery in one transaction.
func (r *LoginLinksRepo) Issue(ctx context.Context, in IssueLoginLinkInput) (user.User, error) {
	var u user.User

	err := r.observe("login_links.issue", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		u, err = r.users.UpsertByEmail(ctx, tx, in.Email)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		if _, err := tx.Exec(ctx, `
			INSERT INTO login_links (id, user_id, verifier_hash, redirect_to, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, in.Selector, u.ID, in.VerifierHash, in.RedirectTo, in.ExpiresAt, now); err != nil {
			return err
		}

		raw, err := jobs.EncodePayload(jobs.JobLoginLink, jobs.LoginLinkPayload{
			LinkID:    in.Selector,
			UserID:    u.ID,
			Email:     u.Email,
			URL:       in.URL,
			ExpiresAt: in.ExpiresAt,
			RequestID: in.RequestID,
		})
		if err != nil {
			return err
		}

		key := "login_link:" + in.Selector
		uid := u.ID

		if _, err := r.jobs.CreateTx(ctx, tx, job.CreateRequest{
			Type:           string(jobs.JobLoginLink),
			Payload:        raw,
			RunAt:          now,
			MaxAttempts:    5,
			IdempotencyKey: &key,
			UserID:         &uid,
		}); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// Consume marks the link used and returns its owner. check receives the stored
// verifier hash and must return nil when the presented verifier matches.
func (r *LoginLinksRepo) Consume(ctx context.Context, selector string, check func(hash string) error) (ConsumedLink, error) {
	var (
		out     ConsumedLink
		invalid bool
	)

	// an unusable link is a verdict, not a database failure
	err := r.observe("login_links.consume", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var (
			userID, hash, redirectTo string
			expiresAt                time.Time
			consumedAt               *time.Time
		)

		err = tx.QueryRow(ctx, `
			SELECT user_id, verifier_hash, redirect_to, expires_at, consumed_at
			FROM login_links
			WHERE id = $1
			FOR UPDATE
		`, selector).Scan(&userID, &hash, &redirectTo, &expiresAt, &consumedAt)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				invalid = true
				return nil
			}
			return err
		}

		if consumedAt != nil || time.Now().UTC().After(expiresAt) || check(hash) != nil {
			invalid = true
			return nil
		}

		if _, err := tx.Exec(ctx, `UPDATE login_links SET consumed_at = NOW() WHERE id = $1`, selector); err != nil {
			return err
		}

		u, err := getUser(ctx, tx, `WHERE id = $1`, userID)
		if err != nil {
			return err
		}

		out = ConsumedLink{User: u, RedirectTo: redirectTo}

		return tx.Commit(ctx)
	})

	if err != nil {
		return ConsumedLink{}, err
	}
	if invalid {
		return ConsumedLink{}, auth.ErrLinkInvalid
	}
	return out, nil
}

// PurgeStale deletes links that expired before cutoff, consumed or not.
func (r *LoginLinksRepo) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64

	err := r.observe("login_links.purge", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM login_links WHERE expires_at < $1`, cutoff)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})

	return n, err
}
