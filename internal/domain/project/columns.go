package project

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindDate   Kind = "date"
	KindSelect Kind = "select"
)

const DateLayout = "2006-01-02"

// Owners is the closed option list of the owner column.
var Owners = []string{"Piaser", "Lazzarin", "Reato", "Mattiuzzo", "Saccon", "Savio"}

type Column struct {
	Key     string   `json:"key"`
	Kind    Kind     `json:"kind"`
	Options []string `json:"options,omitempty"`
}

// Columns lists the editable columns in display order.
var Columns = []Column{
	{Key: "job_number", Kind: KindText},
	{Key: "year", Kind: KindNumber},
	{Key: "name", Kind: KindText},
	{Key: "jam_sent", Kind: KindDate},
	{Key: "jam_confirmed", Kind: KindDate},
	{Key: "notes", Kind: KindText},
	{Key: "material_orders", Kind: KindDate},
	{Key: "owner", Kind: KindSelect, Options: Owners},
}

func LookupColumn(key string) (Column, bool) {
	for _, c := range Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// Coerce turns raw editor text into a cell value: nil, string or int64.
// The input is trimmed first. Empty dates and numbers become nil.
func (c Column) Coerce(raw string) (any, error) {
	v := strings.TrimSpace(raw)

	switch c.Kind {
	case KindDate:
		if v == "" {
			return nil, nil
		}
		if _, err := time.Parse(DateLayout, v); err != nil {
			return nil, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD)", ErrInvalidValue, c.Key)
		}
		return v, nil

	case KindNumber:
		if v == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidValue, c.Key)
		}
		return n, nil

	case KindSelect:
		// the editor offers an empty choice next to the options
		if v != "" && !c.allows(v) {
			return nil, fmt.Errorf("%w: %s must be one of %s", ErrInvalidValue, c.Key, strings.Join(c.Options, ", "))
		}
		return v, nil

	default:
		return v, nil
	}
}

func (c Column) allows(v string) bool {
	for _, o := range c.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Format renders a cell value for display. nil renders as "".
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case int64:
		return strconv.FormatInt(x, 10)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// Cell returns the display text of column key for p.
func (p Project) Cell(key string) string {
	switch key {
	case "job_number":
		return Format(p.JobNumber)
	case "year":
		return Format(p.Year)
	case "name":
		return Format(p.Name)
	case "jam_sent":
		return Format(p.JamSent)
	case "jam_confirmed":
		return Format(p.JamConfirmed)
	case "notes":
		return Format(p.Notes)
	case "material_orders":
		return Format(p.MaterialOrders)
	case "owner":
		return Format(p.Owner)
	default:
		return ""
	}
}
