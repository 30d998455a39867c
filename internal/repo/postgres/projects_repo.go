package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/project"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectColumns = `id, job_number, year, name, jam_sent, jam_confirmed, notes, material_orders, owner, created_by, created_at, updated_at`

// sqlColumns maps editable column keys to fixed SQL identifiers.
// Patch columns are never interpolated from input.
var sqlColumns = map[string]string{
	"job_number":      "job_number",
	"year":            "year",
	"name":            "name",
	"jam_sent":        "jam_sent",
	"jam_confirmed":   "jam_confirmed",
	"notes":           "notes",
	"material_orders": "material_orders",
	"owner":           "owner",
}

type ProjectsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProjectsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProjectsRepo {
	return &ProjectsRepo{pool: pool, prom: prom}
}

func (r *ProjectsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ProjectsRepo) List(ctx context.Context) ([]project.Project, error) {
	var out []project.Project

	err := r.observe("projects.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]project.Project, 0)

		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProjectsRepo) GetByID(ctx context.Context, id string) (project.Project, error) {
	var p project.Project

	err := r.observe("projects.get_by_id", func() error {
		var err error
		p, err = scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, err
	}
	return p, nil
}

func (r *ProjectsRepo) Create(ctx context.Context, req project.CreateRequest) (project.Project, error) {
	p := project.NewFromCreateRequest(uuid.NewString(), req, time.Now().UTC())

	err := r.observe("projects.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO projects (id, job_number, year, name, jam_sent, jam_confirmed, notes, material_orders, owner, created_by, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			p.ID, p.JobNumber, p.Year, p.Name,
			dateArg(p.JamSent), dateArg(p.JamConfirmed), p.Notes, dateArg(p.MaterialOrders),
			p.Owner, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}

// UpdateField writes one column plus updated_at, only when actorID created the row.
func (r *ProjectsRepo) UpdateField(ctx context.Context, id, actorID string, patch project.Patch) (project.Project, error) {
	col, ok := sqlColumns[patch.Column]
	if !ok {
		return project.Project{}, fmt.Errorf("%w: %s", project.ErrUnknownColumn, patch.Column)
	}

	value, err := valueArg(patch)
	if err != nil {
		return project.Project{}, err
	}

	var p project.Project

	err = r.observe("projects.update_field", func() error {
		var err error
		p, err = scanProject(r.pool.QueryRow(ctx,
			`UPDATE projects SET `+col+` = $3, updated_at = $4
			WHERE id = $1 AND created_by = $2
			RETURNING `+projectColumns,
			id, actorID, value, patch.UpdatedAt,
		))
		return err
	})

	if err == nil {
		return p, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return project.Project{}, err
	}

	// nothing matched: tell a missing row apart from someone else's row
	if _, gerr := r.GetByID(ctx, id); gerr != nil {
		return project.Project{}, gerr
	}
	return project.Project{}, project.ErrForbidden
}

func scanProject(row pgx.Row) (project.Project, error) {
	var p project.Project
	var jamSent, jamConfirmed, materialOrders pgtype.Date

	err := row.Scan(
		&p.ID, &p.JobNumber, &p.Year, &p.Name,
		&jamSent, &jamConfirmed, &p.Notes, &materialOrders,
		&p.Owner, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return project.Project{}, err
	}

	p.JamSent = dateString(jamSent)
	p.JamConfirmed = dateString(jamConfirmed)
	p.MaterialOrders = dateString(materialOrders)

	return p, nil
}

func dateString(d pgtype.Date) *string {
	if !d.Valid {
		return nil
	}
	s := d.Time.Format(project.DateLayout)
	return &s
}

func dateArg(s *string) pgtype.Date {
	if s == nil {
		return pgtype.Date{}
	}
	t, err := time.Parse(project.DateLayout, *s)
	if err != nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func valueArg(patch project.Patch) (any, error) {
	c, _ := project.LookupColumn(patch.Column)

	if patch.Value == nil {
		if c.Kind == project.KindDate {
			return pgtype.Date{}, nil
		}
		return nil, nil
	}

	if c.Kind == project.KindDate {
		s, ok := patch.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s", project.ErrInvalidValue, patch.Column)
		}
		d := dateArg(&s)
		if !d.Valid {
			return nil, fmt.Errorf("%w: %s", project.ErrInvalidValue, patch.Column)
		}
		return d, nil
	}

	return patch.Value, nil
}
