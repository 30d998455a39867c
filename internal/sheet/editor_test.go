package sheet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/project"
)

func TestOwnerEditSaves(t *testing.T) {
	var gotID string
	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.updateFn = func(_ context.Context, id string, patch project.Patch) (project.Project, error) {
		gotID = id
		return project.Project{ID: id}, nil
	}

	c, s := loaded(t, b, alphaRow())
	ts := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return ts }

	if !c.Click(context.Background(), "1", "owner") {
		t.Fatalf("expected editor to open")
	}
	if s.editors[0].value != "Savio" {
		t.Fatalf("editor should be pre-filled, got %q", s.editors[0].value)
	}

	c.Commit(context.Background(), "Reato")

	if gotID != "1" || len(b.updates) != 1 {
		t.Fatalf("expected one update on row 1, got id=%q n=%d", gotID, len(b.updates))
	}
	p := b.updates[0]
	if p.Column != "owner" || p.Value != "Reato" || !p.UpdatedAt.Equal(ts) {
		t.Fatalf("unexpected patch %+v", p)
	}
	if s.cell("1", "owner") != "Reato" {
		t.Fatalf("cell should show Reato, got %q", s.cell("1", "owner"))
	}
	if s.lastStatus() != "Modifica salvata ✅" {
		t.Fatalf("unexpected status %q", s.lastStatus())
	}
	if _, _, open := c.Editing(); open {
		t.Fatalf("lock must be released")
	}
	if cell, _ := c.Rows()[0].Cell("owner"); cell != "Reato" {
		t.Fatalf("row state not updated, got %q", cell)
	}
}

func TestFailedUpdateRollsBack(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.updateFn = func(context.Context, string, project.Patch) (project.Project, error) {
		return project.Project{}, errors.New("new row violates row-level security policy")
	}

	c, s := loaded(t, b, alphaRow())
	c.Click(context.Background(), "1", "owner")
	c.Commit(context.Background(), "Reato")

	if s.cell("1", "owner") != "Savio" {
		t.Fatalf("expected rollback to Savio, got %q", s.cell("1", "owner"))
	}
	if s.lastStatus() != "Errore salvataggio: new row violates row-level security policy" {
		t.Fatalf("unexpected status %q", s.lastStatus())
	}
	if _, _, open := c.Editing(); open {
		t.Fatalf("lock must be released after failure")
	}
}

func TestOtherUserCannotEdit(t *testing.T) {
	for _, col := range []string{"owner", "name", "year", "jam_sent"} {
		b := &fakeBackend{currentUserFn: asUser("U2")}
		c, s := loaded(t, b, alphaRow())

		if c.Click(context.Background(), "1", col) {
			t.Fatalf("%s: editor must not open for U2", col)
		}
		if s.openedEditors() != 0 || b.updateCount() != 0 {
			t.Fatalf("%s: no editor and no write expected", col)
		}
		if s.lastStatus() != "Non puoi modificare questa riga (non sei il creatore)." {
			t.Fatalf("%s: unexpected status %q", col, s.lastStatus())
		}
		if _, _, open := c.Editing(); open {
			t.Fatalf("%s: lock leaked", col)
		}
	}
}

func TestAnonymousCannotEdit(t *testing.T) {
	b := &fakeBackend{}
	c, s := loaded(t, b, alphaRow())

	if c.Click(context.Background(), "1", "name") {
		t.Fatalf("anonymous click must not open an editor")
	}
	if s.lastStatus() != "Non puoi modificare questa riga (non sei il creatore)." {
		t.Fatalf("unexpected status %q", s.lastStatus())
	}

	// a failing session lookup counts as anonymous
	b.currentUserFn = func(context.Context) (*Session, error) { return nil, errors.New("offline") }
	if c.Click(context.Background(), "1", "name") {
		t.Fatalf("session error must not open an editor")
	}
}

func TestPermissionCheckedOnEveryClick(t *testing.T) {
	calls := 0
	user := "U1"
	b := &fakeBackend{}
	b.currentUserFn = func(context.Context) (*Session, error) {
		calls++
		return &Session{UserID: user}, nil
	}

	c, _ := loaded(t, b, alphaRow())

	if !c.Click(context.Background(), "1", "name") {
		t.Fatalf("U1 should edit")
	}
	c.Cancel()

	user = "U2"
	if c.Click(context.Background(), "1", "name") {
		t.Fatalf("session changed to U2, click must be refused")
	}
	if calls != 2 {
		t.Fatalf("expected a fresh lookup per click, got %d", calls)
	}
}

func TestClearDateSendsNull(t *testing.T) {
	row := alphaRow()
	row.JamSent = strp("2024-05-01")

	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.updateFn = func(_ context.Context, id string, _ project.Patch) (project.Project, error) {
		return project.Project{ID: id}, nil
	}

	c, s := loaded(t, b, row)
	c.Click(context.Background(), "1", "jam_sent")
	c.Commit(context.Background(), "   ")

	if len(b.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(b.updates))
	}
	if b.updates[0].Column != "jam_sent" || b.updates[0].Value != nil {
		t.Fatalf("expected jam_sent=null, got %+v", b.updates[0])
	}
	if s.cell("1", "jam_sent") != "" {
		t.Fatalf("cleared date should render empty, got %q", s.cell("1", "jam_sent"))
	}
}

func TestUnchangedValueIsNoOp(t *testing.T) {
	tests := []struct {
		name   string
		column string
		raw    string
	}{
		{name: "same_text", column: "name", raw: "Alpha"},
		{name: "padded_text", column: "name", raw: "  Alpha  "},
		{name: "same_number", column: "year", raw: "2024"},
		{name: "empty_date", column: "jam_sent", raw: ""},
		{name: "same_select", column: "owner", raw: "Savio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{currentUserFn: asUser("U1")}
			c, s := loaded(t, b, alphaRow())
			before := s.cell("1", tt.column)

			c.Click(context.Background(), "1", tt.column)
			c.Commit(context.Background(), tt.raw)

			if b.updateCount() != 0 {
				t.Fatalf("no write expected")
			}
			if s.cell("1", tt.column) != before {
				t.Fatalf("display changed: %q -> %q", before, s.cell("1", tt.column))
			}
			if _, _, open := c.Editing(); open {
				t.Fatalf("editor should be closed")
			}
		})
	}
}

func TestSecondClickWhileEditingIsNoOp(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	c, s := loaded(t, b, alphaRow())

	if !c.Click(context.Background(), "1", "name") {
		t.Fatalf("first click should open")
	}
	if c.Click(context.Background(), "1", "owner") {
		t.Fatalf("second click must be dropped")
	}

	row, col, open := c.Editing()
	if !open || row != "1" || col != "name" {
		t.Fatalf("lock altered: %s %s %v", row, col, open)
	}
	if s.openedEditors() != 1 {
		t.Fatalf("expected exactly one editor, got %d", s.openedEditors())
	}
}

func TestClickDuringPermissionCheckIsNoOp(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	b := &fakeBackend{}
	b.currentUserFn = func(context.Context) (*Session, error) {
		close(entered)
		<-release
		return &Session{UserID: "U1"}, nil
	}

	c, s := loaded(t, b, alphaRow())

	var wg sync.WaitGroup
	var opened bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		opened = c.Click(context.Background(), "1", "name")
	}()

	<-entered
	if c.Click(context.Background(), "1", "owner") {
		t.Fatalf("click during a pending check must be dropped")
	}
	close(release)
	wg.Wait()

	if !opened || s.openedEditors() != 1 {
		t.Fatalf("first click should win, opened=%v editors=%d", opened, s.openedEditors())
	}
}

func TestEnterThenBlurCommitsOnce(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.updateFn = func(_ context.Context, id string, _ project.Patch) (project.Project, error) {
		return project.Project{ID: id}, nil
	}

	c, _ := loaded(t, b, alphaRow())
	c.Click(context.Background(), "1", "name")

	c.Commit(context.Background(), "Beta")
	c.Commit(context.Background(), "Beta")

	if b.updateCount() != 1 {
		t.Fatalf("expected one write, got %d", b.updateCount())
	}
}

func TestBlurDuringSaveIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.updateFn = func(_ context.Context, id string, _ project.Patch) (project.Project, error) {
		close(entered)
		<-release
		return project.Project{ID: id}, nil
	}

	c, _ := loaded(t, b, alphaRow())
	c.Click(context.Background(), "1", "name")

	done := make(chan struct{})
	go func() {
		c.Commit(context.Background(), "Beta")
		close(done)
	}()

	<-entered
	c.Commit(context.Background(), "Gamma")
	c.Cancel()
	close(release)
	<-done

	if b.updateCount() != 1 {
		t.Fatalf("expected one write, got %d", b.updateCount())
	}
}

func TestEscapeCancels(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	c, s := loaded(t, b, alphaRow())

	c.Click(context.Background(), "1", "name")
	c.Cancel()

	if b.updateCount() != 0 {
		t.Fatalf("cancel must not write")
	}
	if s.cell("1", "name") != "Alpha" {
		t.Fatalf("cancel should restore, got %q", s.cell("1", "name"))
	}
	if !c.Click(context.Background(), "1", "name") {
		t.Fatalf("lock must be free after cancel")
	}
}

func TestInvalidInputIsSaveError(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	c, s := loaded(t, b, alphaRow())

	c.Click(context.Background(), "1", "year")
	c.Commit(context.Background(), "duemila")

	if b.updateCount() != 0 {
		t.Fatalf("bad input must not reach the backend")
	}
	if s.cell("1", "year") != "2024" {
		t.Fatalf("expected rollback, got %q", s.cell("1", "year"))
	}
	if got := s.lastStatus(); len(got) < len("Errore salvataggio: ") || got[:len("Errore salvataggio: ")] != "Errore salvataggio: " {
		t.Fatalf("unexpected status %q", got)
	}
	if _, _, open := c.Editing(); open {
		t.Fatalf("lock must be released")
	}
}

func TestNumberEditSendsInteger(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	b.updateFn = func(_ context.Context, id string, _ project.Patch) (project.Project, error) {
		return project.Project{ID: id}, nil
	}

	c, s := loaded(t, b, alphaRow())
	c.Click(context.Background(), "1", "year")
	c.Commit(context.Background(), " 2025 ")

	if len(b.updates) != 1 || b.updates[0].Value != int64(2025) {
		t.Fatalf("expected year=2025, got %+v", b.updates)
	}
	if s.cell("1", "year") != "2025" {
		t.Fatalf("got %q", s.cell("1", "year"))
	}
}

func TestClickGuards(t *testing.T) {
	b := &fakeBackend{}
	b.currentUserFn = func(context.Context) (*Session, error) {
		t.Fatalf("guards must reject before asking for the user")
		return nil, nil
	}

	c, s := loaded(t, b, alphaRow())

	cases := [][2]string{
		{"", "name"},
		{"1", ""},
		{"404", "name"},
		{"1", "created_by"},
		{"1", "id"},
	}
	for _, tc := range cases {
		if c.Click(context.Background(), tc[0], tc[1]) {
			t.Fatalf("click %v should be rejected", tc)
		}
	}
	if s.lastStatus() != "Righe: 1" {
		t.Fatalf("guards are silent, got status %q", s.lastStatus())
	}
}

func TestCommitWithoutEditorIsIgnored(t *testing.T) {
	b := &fakeBackend{currentUserFn: asUser("U1")}
	c, _ := loaded(t, b, alphaRow())

	c.Commit(context.Background(), "x")
	c.Cancel()

	if b.updateCount() != 0 {
		t.Fatalf("nothing to commit")
	}
}
