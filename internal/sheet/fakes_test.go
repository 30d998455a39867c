package sheet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/geocoder89/jobsheet/internal/domain/project"
)

type fakeBackend struct {
	listFn        func(ctx context.Context) ([]project.Project, error)
	insertFn      func(ctx context.Context, req project.CreateRequest) (project.Project, error)
	updateFn      func(ctx context.Context, id string, patch project.Patch) (project.Project, error)
	currentUserFn func(ctx context.Context) (*Session, error)
	loginLinkFn   func(ctx context.Context, email, redirectTo string) error
	logoutFn      func(ctx context.Context) error

	mu        sync.Mutex
	listeners []func(*Session)
	updates   []project.Patch
	inserts   []project.CreateRequest
}

func (f *fakeBackend) OnAuthStateChange(fn func(*Session)) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
	fn(nil)
	return func() {}
}

func (f *fakeBackend) emit(s *Session) {
	f.mu.Lock()
	ls := append(([]func(*Session))(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range ls {
		fn(s)
	}
}

func (f *fakeBackend) RequestLoginLink(ctx context.Context, email, redirectTo string) error {
	if f.loginLinkFn == nil {
		return nil
	}
	return f.loginLinkFn(ctx, email, redirectTo)
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(ctx)
}

func (f *fakeBackend) CurrentUser(ctx context.Context) (*Session, error) {
	if f.currentUserFn == nil {
		return nil, nil
	}
	return f.currentUserFn(ctx)
}

func (f *fakeBackend) List(ctx context.Context) ([]project.Project, error) {
	if f.listFn == nil {
		return nil, errors.New("listFn not set")
	}
	return f.listFn(ctx)
}

func (f *fakeBackend) Insert(ctx context.Context, req project.CreateRequest) (project.Project, error) {
	f.mu.Lock()
	f.inserts = append(f.inserts, req)
	f.mu.Unlock()
	if f.insertFn == nil {
		return project.Project{}, errors.New("insertFn not set")
	}
	return f.insertFn(ctx, req)
}

func (f *fakeBackend) Update(ctx context.Context, id string, patch project.Patch) (project.Project, error) {
	f.mu.Lock()
	f.updates = append(f.updates, patch)
	f.mu.Unlock()
	if f.updateFn == nil {
		return project.Project{}, errors.New("updateFn not set")
	}
	return f.updateFn(ctx, id, patch)
}

func (f *fakeBackend) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type editorEvent struct {
	rowID  string
	column string
	value  string
	open   bool
}

// recordingSurface keeps the last state of every widget.
type recordingSurface struct {
	mu sync.Mutex

	status      string
	statuses    []string
	rows        []Row
	renders     int
	cells       map[string]string
	editors     []editorEvent
	auth        AuthView
	authUpdates int
	loginMsg    string
	formVisible bool
	formMsg     string
	formResets  int
}

func newSurface() *recordingSurface {
	return &recordingSurface{cells: map[string]string{}}
}

func (s *recordingSurface) SetStatus(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = msg
	s.statuses = append(s.statuses, msg)
}

func (s *recordingSurface) RenderRows(rows []Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.renders++
	s.cells = map[string]string{}
	for _, r := range rows {
		for i, c := range project.Columns {
			s.cells[r.ID+"/"+c.Key] = r.Cells[i]
		}
	}
}

func (s *recordingSurface) SetCell(rowID, column, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[rowID+"/"+column] = text
}

func (s *recordingSurface) OpenEditor(rowID string, col project.Column, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editors = append(s.editors, editorEvent{rowID: rowID, column: col.Key, value: value, open: true})
}

func (s *recordingSurface) CloseEditor(rowID, column string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editors = append(s.editors, editorEvent{rowID: rowID, column: column})
}

func (s *recordingSurface) SetAuthView(v AuthView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = v
	s.authUpdates++
}

func (s *recordingSurface) SetLoginMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginMsg = msg
}

func (s *recordingSurface) SetFormVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formVisible = visible
}

func (s *recordingSurface) SetFormMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formMsg = msg
}

func (s *recordingSurface) ResetForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formResets++
}

func (s *recordingSurface) cell(rowID, column string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cells[rowID+"/"+column]
}

func (s *recordingSurface) lastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *recordingSurface) openedEditors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.editors {
		if e.open {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strp(s string) *string { return &s }

func int64p(n int64) *int64 { return &n }

// alphaRow is the single row of the reference scenario.
func alphaRow() project.Project {
	return project.Project{
		ID:        "1",
		JobNumber: strp("J1"),
		Year:      int64p(2024),
		Name:      strp("Alpha"),
		Owner:     strp("Savio"),
		CreatedBy: strp("U1"),
	}
}

func asUser(id string) func(context.Context) (*Session, error) {
	return func(context.Context) (*Session, error) {
		return &Session{UserID: id, Email: id + "@example.com"}, nil
	}
}

// loaded returns a controller that already rendered rows.
func loaded(t *testing.T, b *fakeBackend, rows ...project.Project) (*Controller, *recordingSurface) {
	t.Helper()

	if b.listFn == nil {
		b.listFn = func(context.Context) ([]project.Project, error) { return rows, nil }
	}

	s := newSurface()
	c := New(b, s, "http://localhost:5173/", testLogger())
	c.Load(context.Background())

	return c, s
}
