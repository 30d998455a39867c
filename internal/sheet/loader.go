package sheet

import (
	"context"
	"strconv"

	"github.com/geocoder89/jobsheet/internal/domain/project"
)

// Load fetches every row newest first and replaces the table body.
// On failure the previous rows stay on screen.
func (c *Controller) Load(ctx context.Context) {
	c.surface.SetStatus(msgLoading)

	items, err := c.backend.List(ctx)
	if err != nil {
		c.log.Warn("sheet.load_failed", "err", err)
		c.surface.SetStatus(msgErrorPrefix + err.Error())
		return
	}

	rows := make([]Row, 0, len(items))
	for _, p := range items {
		rows = append(rows, rowFor(p))
	}

	c.mu.Lock()
	c.rows = rows
	c.mu.Unlock()

	c.surface.RenderRows(cloneRows(rows))
	c.surface.SetStatus(msgRowsPrefix + strconv.Itoa(len(rows)))
}

// Rows returns a copy of what is currently rendered.
func (c *Controller) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneRows(c.rows)
}

func rowFor(p project.Project) Row {
	cells := make([]string, len(project.Columns))
	for i, col := range project.Columns {
		cells[i] = p.Cell(col.Key)
	}
	return Row{ID: p.ID, CreatedBy: p.CreatorID(), Cells: cells}
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		r.Cells = append([]string(nil), r.Cells...)
		out[i] = r
	}
	return out
}

// findRow must be called with c.mu held.
func (c *Controller) findRow(id string) (*Row, bool) {
	for i := range c.rows {
		if c.rows[i].ID == id {
			return &c.rows[i], true
		}
	}
	return nil, false
}
