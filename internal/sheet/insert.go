package sheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/geocoder89/jobsheet/internal/domain/project"
)

// ToggleForm shows or hides the new-row form and clears its message.
func (c *Controller) ToggleForm() {
	c.mu.Lock()
	c.formVisible = !c.formVisible
	visible := c.formVisible
	c.mu.Unlock()

	c.surface.SetFormVisible(visible)
	c.surface.SetFormMessage("")
}

// CancelForm hides the form, clears its message and resets the fields.
func (c *Controller) CancelForm() {
	c.hideAndReset()
	c.surface.SetFormMessage("")
}

// SetField stores a form input value. Only editable columns are fields.
func (c *Controller) SetField(key, value string) error {
	if _, ok := project.LookupColumn(key); !ok {
		return fmt.Errorf("%w: %s", project.ErrUnknownColumn, key)
	}

	c.mu.Lock()
	c.form[key] = value
	c.mu.Unlock()
	return nil
}

// FormValues returns a copy of the form inputs.
func (c *Controller) FormValues() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.form))
	for k, v := range c.form {
		out[k] = v
	}
	return out
}

// SubmitForm inserts a row tagged with the current user and reloads the table.
// On failure the form stays open with its values.
func (c *Controller) SubmitForm(ctx context.Context) {
	s, err := c.backend.CurrentUser(ctx)
	if err != nil {
		c.log.Warn("sheet.current_user_failed", "err", err)
		s = nil
	}
	if s == nil || s.UserID == "" {
		c.surface.SetFormMessage(msgLoginRequired)
		return
	}

	req := buildCreateRequest(c.FormValues(), s.UserID)

	if _, err := c.backend.Insert(ctx, req); err != nil {
		c.log.Warn("sheet.insert_failed", "err", err)
		c.surface.SetFormMessage(msgErrorPrefix + err.Error())
		return
	}

	c.surface.SetFormMessage(msgRowSaved)
	c.hideAndReset()
	c.Load(ctx)
}

func (c *Controller) hideAndReset() {
	c.mu.Lock()
	c.formVisible = false
	c.form = map[string]string{}
	c.mu.Unlock()

	c.surface.SetFormVisible(false)
	c.surface.ResetForm()
}

// buildCreateRequest coerces form text: year to a number (nil when it does
// not parse), empty dates to nil.
func buildCreateRequest(form map[string]string, userID string) project.CreateRequest {
	req := project.CreateRequest{
		JobNumber: form["job_number"],
		Name:      form["name"],
		Owner:     strings.TrimSpace(form["owner"]),
		Notes:     form["notes"],
		CreatedBy: userID,
	}

	if n, err := strconv.ParseInt(strings.TrimSpace(form["year"]), 10, 64); err == nil {
		req.Year = &n
	}

	req.JamSent = optionalDate(form["jam_sent"])
	req.JamConfirmed = optionalDate(form["jam_confirmed"])
	req.MaterialOrders = optionalDate(form["material_orders"])

	return req
}

func optionalDate(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
