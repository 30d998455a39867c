package sheet

import (
	"context"
	"errors"
	"testing"

	"github.com/geocoder89/jobsheet/internal/domain/project"
)

func TestInsertRequiresLogin(t *testing.T) {
	b := &fakeBackend{}
	c, s := loaded(t, b)

	c.ToggleForm()
	if err := c.SetField("year", "2025"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	c.SubmitForm(context.Background())

	if len(b.inserts) != 0 {
		t.Fatalf("no insert expected while anonymous")
	}
	if s.formMsg != "Devi essere loggato." {
		t.Fatalf("unexpected message %q", s.formMsg)
	}
	if !s.formVisible || c.FormValues()["year"] != "2025" {
		t.Fatalf("form should stay open with its values")
	}
}

func TestInsertSuccess(t *testing.T) {
	lists := 0
	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.listFn = func(context.Context) ([]project.Project, error) {
		lists++
		if lists == 1 {
			return nil, nil
		}
		return []project.Project{alphaRow()}, nil
	}
	b.insertFn = func(_ context.Context, req project.CreateRequest) (project.Project, error) {
		return project.Project{ID: "1"}, nil
	}

	c, s := loaded(t, b)
	c.ToggleForm()

	fields := map[string]string{
		"job_number":      "J1",
		"year":            "2025",
		"name":            "Alpha",
		"owner":           "Savio",
		"jam_sent":        "2025-01-10",
		"jam_confirmed":   "",
		"material_orders": "  ",
		"notes":           "n",
	}
	for k, v := range fields {
		if err := c.SetField(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	c.SubmitForm(context.Background())

	if len(b.inserts) != 1 {
		t.Fatalf("expected one insert, got %d", len(b.inserts))
	}
	req := b.inserts[0]
	if req.CreatedBy != "U1" {
		t.Fatalf("created_by should be the session user, got %q", req.CreatedBy)
	}
	if req.Year == nil || *req.Year != 2025 {
		t.Fatalf("year not coerced: %v", req.Year)
	}
	if req.JamSent == nil || *req.JamSent != "2025-01-10" {
		t.Fatalf("jam_sent lost: %v", req.JamSent)
	}
	if req.JamConfirmed != nil || req.MaterialOrders != nil {
		t.Fatalf("empty dates must be null")
	}

	if s.formMsg != "Salvato ✅" {
		t.Fatalf("unexpected message %q", s.formMsg)
	}
	if s.formVisible || s.formResets != 1 || len(c.FormValues()) != 0 {
		t.Fatalf("form should be hidden and reset")
	}
	if lists != 2 || s.lastStatus() != "Righe: 1" {
		t.Fatalf("expected a reload, lists=%d status=%q", lists, s.lastStatus())
	}
}

func TestInsertFailureKeepsForm(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.insertFn = func(context.Context, project.CreateRequest) (project.Project, error) {
		return project.Project{}, errors.New("owner must be one of the options")
	}

	c, s := loaded(t, b)
	c.ToggleForm()
	_ = c.SetField("owner", "Rossi")
	c.SubmitForm(context.Background())

	if s.formMsg != "Errore: owner must be one of the options" {
		t.Fatalf("unexpected message %q", s.formMsg)
	}
	if !s.formVisible || c.FormValues()["owner"] != "Rossi" {
		t.Fatalf("form should stay open with its values")
	}
}

func TestBadYearBecomesNull(t *testing.T) {
	// a partly numeric year is rejected whole, never truncated to its prefix
	for _, in := range []string{"n/a", "2025abc", "20.25", ""} {
		req := buildCreateRequest(map[string]string{"year": in}, "U1")
		if req.Year != nil {
			t.Fatalf("%q: expected nil year, got %d", in, *req.Year)
		}
	}

	req := buildCreateRequest(map[string]string{"year": " 2025 "}, "U1")
	if req.Year == nil || *req.Year != 2025 {
		t.Fatalf("expected 2025, got %v", req.Year)
	}
}

func TestToggleAndCancelForm(t *testing.T) {
	c, s := loaded(t, &fakeBackend{})

	s.formMsg = "old"
	c.ToggleForm()
	if !s.formVisible || s.formMsg != "" {
		t.Fatalf("toggle should show and clear the message")
	}

	c.ToggleForm()
	if s.formVisible {
		t.Fatalf("second toggle should hide")
	}

	c.ToggleForm()
	_ = c.SetField("name", "x")
	s.formMsg = "old"
	c.CancelForm()

	if s.formVisible || s.formMsg != "" || s.formResets != 1 || len(c.FormValues()) != 0 {
		t.Fatalf("cancel should hide, clear and reset")
	}
}

func TestSetFieldRejectsUnknown(t *testing.T) {
	c, _ := loaded(t, &fakeBackend{})

	if err := c.SetField("created_by", "U9"); !errors.Is(err, project.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}
