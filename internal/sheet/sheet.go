// Package sheet drives the project table: auth gate, row loader, inline cell
// editor and row insertion. It talks to the data service through Backend and
// draws through Surface, so the same controller runs behind any front end.
package sheet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/jobsheet/internal/domain/project"
)

// Session is the signed-in identity. A nil *Session means anonymous.
type Session struct {
	UserID string
	Email  string
}

// Backend is the hosted data service. The server enforces the row-level
// policy; nothing the controller checks replaces it.
type Backend interface {
	// OnAuthStateChange registers fn and calls it once with the current
	// session, then on every sign-in and sign-out.
	OnAuthStateChange(fn func(*Session)) (unsubscribe func())
	RequestLoginLink(ctx context.Context, email, redirectTo string) error
	Logout(ctx context.Context) error
	// CurrentUser asks the service, never a cache. nil, nil means anonymous.
	CurrentUser(ctx context.Context) (*Session, error)

	List(ctx context.Context) ([]project.Project, error)
	Insert(ctx context.Context, req project.CreateRequest) (project.Project, error)
	Update(ctx context.Context, id string, patch project.Patch) (project.Project, error)
}

// Surface is the rendering target.
type Surface interface {
	SetStatus(msg string)
	RenderRows(rows []Row)
	SetCell(rowID, column, text string)
	// OpenEditor swaps the cell for an input of col.Kind holding value,
	// focused with the text selected.
	OpenEditor(rowID string, col project.Column, value string)
	CloseEditor(rowID, column string)

	SetAuthView(v AuthView)
	SetLoginMessage(msg string)

	SetFormVisible(visible bool)
	SetFormMessage(msg string)
	ResetForm()
}

// Row is one rendered table row. Cells follow project.Columns order.
type Row struct {
	ID        string
	CreatedBy string
	Cells     []string
}

// Cell returns the displayed text of column key.
func (r Row) Cell(key string) (string, bool) {
	for i, c := range project.Columns {
		if c.Key == key {
			return r.Cells[i], true
		}
	}
	return "", false
}

func (r *Row) setCell(key, text string) {
	for i, c := range project.Columns {
		if c.Key == key {
			r.Cells[i] = text
			return
		}
	}
}

type Controller struct {
	backend Backend
	surface Surface
	pageURL string
	log     *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	rows     []Row
	editing  *editHandle
	authView *AuthView

	formVisible bool
	form        map[string]string
}

// New builds a controller. pageURL is where emailed login links send the user back.
func New(backend Backend, surface Surface, pageURL string, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}

	return &Controller{
		backend: backend,
		surface: surface,
		pageURL: pageURL,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		form:    map[string]string{},
	}
}

// Start subscribes the auth gate and performs the first load.
func (c *Controller) Start(ctx context.Context) (stop func()) {
	unsubscribe := c.backend.OnAuthStateChange(c.onAuthState)
	c.Load(ctx)
	return unsubscribe
}
