package sheet

import (
	"context"
	"strings"

	"github.com/geocoder89/jobsheet/internal/domain/project"
)

type editState int

const (
	// the handle is held while the permission check runs
	editChecking editState = iota
	editOpen
	editCommitting
)

// editHandle is the single-flight token. At most one exists per controller.
type editHandle struct {
	rowID  string
	column project.Column
	old    string
	state  editState
}

// Editing reports the open cell, if any.
func (c *Controller) Editing() (rowID, column string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editing == nil || c.editing.state == editChecking {
		return "", "", false
	}
	return c.editing.rowID, c.editing.column.Key, true
}

// Click opens an editor on the cell when no other edit is in progress and the
// current user created the row. It reports whether an editor opened.
func (c *Controller) Click(ctx context.Context, rowID, column string) bool {
	if rowID == "" || column == "" {
		return false
	}

	c.mu.Lock()
	if c.editing != nil {
		c.mu.Unlock()
		return false
	}

	row, ok := c.findRow(rowID)
	if !ok {
		c.mu.Unlock()
		return false
	}

	col, ok := project.LookupColumn(column)
	if !ok {
		c.mu.Unlock()
		return false
	}

	old, _ := row.Cell(col.Key)
	old = strings.TrimSpace(old)
	createdBy := row.CreatedBy

	h := &editHandle{rowID: rowID, column: col, old: old, state: editChecking}
	c.editing = h
	c.mu.Unlock()

	// the session may have changed since the last click, so ask every time
	s, err := c.backend.CurrentUser(ctx)
	if err != nil {
		c.log.Warn("sheet.current_user_failed", "err", err)
		s = nil
	}

	if s == nil || s.UserID == "" || s.UserID != createdBy {
		c.release(h)
		c.surface.SetStatus(msgNotCreator)
		return false
	}

	c.mu.Lock()
	h.state = editOpen
	c.mu.Unlock()

	c.surface.OpenEditor(rowID, col, old)
	return true
}

// Commit saves raw into the open cell. Enter and blur both land here; a
// commit that arrives while another is running or after the editor closed
// is dropped.
func (c *Controller) Commit(ctx context.Context, raw string) {
	c.mu.Lock()
	h := c.editing
	if h == nil || h.state != editOpen {
		c.mu.Unlock()
		return
	}
	h.state = editCommitting
	c.mu.Unlock()

	value, err := h.column.Coerce(raw)
	if err != nil {
		c.finish(h, h.old)
		c.surface.SetStatus(msgSaveErrPrefix + err.Error())
		return
	}

	text := project.Format(value)
	if text == h.old {
		c.finish(h, h.old)
		return
	}

	patch := project.Patch{Column: h.column.Key, Value: value, UpdatedAt: c.now()}

	if _, err := c.backend.Update(ctx, h.rowID, patch); err != nil {
		c.log.Warn("sheet.update_failed", "row_id", h.rowID, "column", h.column.Key, "err", err)
		c.finish(h, h.old)
		c.surface.SetStatus(msgSaveErrPrefix + err.Error())
		return
	}

	c.finish(h, text)
	c.surface.SetStatus(msgEditSaved)
}

// Cancel closes the open editor and restores the old text without saving.
func (c *Controller) Cancel() {
	c.mu.Lock()
	h := c.editing
	if h == nil || h.state != editOpen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.finish(h, h.old)
}

// finish writes text into the cell, closes the editor and drops the lock.
func (c *Controller) finish(h *editHandle, text string) {
	c.mu.Lock()
	if row, ok := c.findRow(h.rowID); ok {
		row.setCell(h.column.Key, text)
	}
	c.mu.Unlock()

	c.surface.CloseEditor(h.rowID, h.column.Key)
	c.surface.SetCell(h.rowID, h.column.Key, text)

	c.release(h)
}

func (c *Controller) release(h *editHandle) {
	c.mu.Lock()
	if c.editing == h {
		c.editing = nil
	}
	c.mu.Unlock()
}
