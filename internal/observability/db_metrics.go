package observability

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveDB times fn under the logical operation op. A pgx.ErrNoRows result
// is an answer, not a failure: it is timed as "no_rows" and not counted as
// an error. Safe on a nil receiver.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		status = "no_rows"
	default:
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}

	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "23503":
			return "foreign_key_violation"
		case "22P02", "22007", "22008":
			return "invalid_input"
		case "40001", "40P01":
			return "conflict"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &connErr):
		return "connection"
	default:
		return "unknown"
	}
}
