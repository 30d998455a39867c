package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/geocoder89/jobsheet/internal/sheet"
)

var errUsage = errors.New("usage")

// Verifier turns an emailed link into a session.
type Verifier interface {
	Verify(ctx context.Context, link string) error
}

// REPL reads commands line by line and drives the controller.
type REPL struct {
	ctrl *sheet.Controller
	view *Console
	auth Verifier
	out  io.Writer
}

func NewREPL(ctrl *sheet.Controller, view *Console, auth Verifier, out io.Writer) *REPL {
	return &REPL{ctrl: ctrl, view: view, auth: auth, out: out}
}

// Run renders, then executes lines from in until quit, EOF or ctx is done.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	if err := r.view.Render(r.ctrl.FormValues()); err != nil {
		return err
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")

		if !sc.Scan() {
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		quit, err := r.Exec(ctx, sc.Text())
		if err != nil {
			fmt.Fprintln(r.out, err)
		}
		if quit {
			return nil
		}

		if err := r.view.Render(r.ctrl.FormValues()); err != nil {
			return err
		}
	}
}

// Exec runs one command line.
func (r *REPL) Exec(ctx context.Context, line string) (quit bool, err error) {
	cmd, rest := splitWord(strings.TrimSpace(line))

	switch cmd {
	case "":
		return false, nil

	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprintln(r.out, helpText)

	case "reload":
		r.ctrl.Load(ctx)

	case "login":
		if rest == "" {
			return false, fmt.Errorf("%w: login <email>", errUsage)
		}
		r.ctrl.RequestLoginLink(ctx, rest)

	case "verify":
		if rest == "" {
			return false, fmt.Errorf("%w: verify <token|link>", errUsage)
		}
		if err := r.auth.Verify(ctx, rest); err != nil {
			r.view.SetLoginMessage("Errore: " + err.Error())
		}

	case "logout":
		r.ctrl.Logout(ctx)

	case "click":
		rowArg, col := splitWord(rest)
		n, err := strconv.Atoi(rowArg)
		if err != nil || col == "" {
			return false, fmt.Errorf("%w: click <row> <column>", errUsage)
		}
		// clicking away from an open editor saves it first
		if text, ok := r.view.EditorText(); ok {
			r.ctrl.Commit(ctx, text)
		}
		id, ok := r.view.RowID(n)
		if !ok {
			return false, nil
		}
		r.ctrl.Click(ctx, id, col)

	case "type":
		r.view.Type(rest)

	case "enter", "blur":
		if text, ok := r.view.EditorText(); ok {
			r.ctrl.Commit(ctx, text)
		}

	case "esc":
		r.ctrl.Cancel()

	case "new":
		r.ctrl.ToggleForm()

	case "set":
		field, value := splitWord(rest)
		if field == "" {
			return false, fmt.Errorf("%w: set <field> <value>", errUsage)
		}
		return false, r.ctrl.SetField(field, value)

	case "save":
		r.ctrl.SubmitForm(ctx)

	case "cancel":
		r.ctrl.CancelForm()

	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}

	return false, nil
}

func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

const helpText = `commands:
  reload                 fetch rows again
  login <email>          email a login link
  verify <token|link>    sign in with the emailed link
  logout
  click <row> <column>   edit a cell
  type <text>            replace the editor text
  enter | blur           save the cell
  esc                    discard the edit
  new                    show or hide the new-row form
  set <field> <value>    fill a form field
  save | cancel          submit or close the form
  quit`
