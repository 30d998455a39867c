package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return getUser(ctx, r.pool, `WHERE email = $1`, normalizeEmail(email))
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return getUser(ctx, r.pool, `WHERE id = $1`, id)
}

// UpsertByEmail returns the user for email, creating it on first sight.
func (r *UsersRepo) UpsertByEmail(ctx context.Context, q querier, email string) (user.User, error) {
	now := time.Now().UTC()

	var u user.User

	err := q.QueryRow(ctx, `
		INSERT INTO users (id, email, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (email) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING id, email, created_at, updated_at
	`, uuid.NewString(), normalizeEmail(email), now).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func getUser(ctx context.Context, q querier, where string, arg any) (user.User, error) {
	var u user.User

	err := q.QueryRow(ctx,
		`SELECT id, email, created_at, updated_at FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
