package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh not found")
	ErrRefreshTokenInvalid  = errors.New("refresh token revoked, expired or mismatched")
)

type RefreshTokenRow struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
}

func NewRefreshTokensRepo(pool *pgxpool.Pool) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row RefreshTokenRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
		row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
	)
	return err
}

// Rotate revokes oldID and stores next in one transaction. The old row is
// locked so two concurrent refreshes with the same token cannot both win.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, presentedHash string, next RefreshTokenRow) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var row RefreshTokenRow

	err = tx.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, oldID).Scan(&row.ID, &row.UserID, &row.TokenHash, &row.ExpiresAt, &row.RevokedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRefreshTokenNotFound
		}
		return err
	}

	// verify hash matches the presented token (prevents token substitution)
	if row.RevokedAt != nil || time.Now().UTC().After(row.ExpiresAt) || row.TokenHash != presentedHash || row.UserID != next.UserID {
		return ErrRefreshTokenInvalid
	}

	if _, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), replaced_by = $2
		WHERE id = $1
	`, oldID, next.ID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		next.ID, next.UserID, next.TokenHash, next.ExpiresAt, next.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Revoke is idempotent.
func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)

	return err
}

// PurgeStale deletes tokens that expired or were revoked before cutoff.
func (r *RefreshTokensRepo) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
