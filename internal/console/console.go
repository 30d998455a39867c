// Package console is a line-oriented terminal rendering of the sheet.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/geocoder89/jobsheet/internal/domain/project"
	"github.com/geocoder89/jobsheet/internal/sheet"
)

type editor struct {
	rowID  string
	column project.Column
	buffer string
}

// Console implements sheet.Surface. It keeps the last state of every widget
// and prints the whole screen on Render.
type Console struct {
	out io.Writer

	mu          sync.Mutex
	status      string
	rows        []sheet.Row
	editing     *editor
	auth        sheet.AuthView
	loginMsg    string
	formVisible bool
	formMsg     string
}

var _ sheet.Surface = (*Console)(nil)

func New(out io.Writer) *Console {
	return &Console{out: out, auth: sheet.AuthView{LoginVisible: true}}
}

func (c *Console) SetStatus(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = msg
}

func (c *Console) RenderRows(rows []sheet.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
}

func (c *Console) SetCell(rowID, column, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := columnIndex(column)
	if idx < 0 {
		return
	}
	for i := range c.rows {
		if c.rows[i].ID == rowID {
			c.rows[i].Cells[idx] = text
		}
	}
}

func (c *Console) OpenEditor(rowID string, col project.Column, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = &editor{rowID: rowID, column: col, buffer: value}
}

func (c *Console) CloseEditor(rowID, column string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing != nil && c.editing.rowID == rowID && c.editing.column.Key == column {
		c.editing = nil
	}
}

func (c *Console) SetAuthView(v sheet.AuthView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = v
}

func (c *Console) SetLoginMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginMsg = msg
}

func (c *Console) SetFormVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formVisible = visible
}

func (c *Console) SetFormMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formMsg = msg
}

// ResetForm is a no-op: the controller owns the form values.
func (c *Console) ResetForm() {}

// Type replaces the open editor's text. It reports false when no editor is open.
func (c *Console) Type(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return false
	}
	c.editing.buffer = text
	return true
}

// EditorText returns the open editor's text.
func (c *Console) EditorText() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return "", false
	}
	return c.editing.buffer, true
}

// RowID maps a 1-based screen row number to the row id.
func (c *Console) RowID(n int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.rows) {
		return "", false
	}
	return c.rows[n-1].ID, true
}

// Render prints the screen. form holds the new-row inputs shown when the form is open.
func (c *Console) Render(form map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder

	switch {
	case c.auth.LoginVisible:
		b.WriteString("[login <email>]")
	default:
		b.WriteString("[" + c.auth.Badge + "]")
	}
	if c.auth.NewRowVisible {
		b.WriteString(" [new]")
	}
	if c.auth.LogoutVisible {
		b.WriteString(" [logout]")
	}
	b.WriteString("\n")
	if c.auth.LoginVisible && c.loginMsg != "" {
		b.WriteString(c.loginMsg + "\n")
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	header := []string{"#"}
	for _, col := range project.Columns {
		header = append(header, col.Key)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, r := range c.rows {
		cells := []string{strconv.Itoa(i + 1)}
		for j, col := range project.Columns {
			text := r.Cells[j]
			if c.editing != nil && c.editing.rowID == r.ID && c.editing.column.Key == col.Key {
				text = "[" + c.editing.buffer + "]"
			}
			cells = append(cells, text)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	b.WriteString("\n" + c.status + "\n")

	if c.editing != nil {
		fmt.Fprintf(&b, "editing %s (%s)", c.editing.column.Key, c.editing.column.Kind)
		if len(c.editing.column.Options) > 0 {
			b.WriteString(": \"\" " + strings.Join(c.editing.column.Options, " "))
		}
		b.WriteString("  type <text> | enter | blur | esc\n")
	}

	if c.formVisible {
		b.WriteString("\nnew row  set <field> <value> | save | cancel\n")
		ftw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		for _, col := range project.Columns {
			fmt.Fprintf(ftw, "  %s\t%s\n", col.Key, form[col.Key])
		}
		if err := ftw.Flush(); err != nil {
			return err
		}
	}
	if c.formMsg != "" {
		b.WriteString(c.formMsg + "\n")
	}

	_, err := io.WriteString(c.out, b.String())
	return err
}

func columnIndex(key string) int {
	for i, col := range project.Columns {
		if col.Key == key {
			return i
		}
	}
	return -1
}
