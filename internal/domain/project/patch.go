package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Patch is a partial update: exactly one column plus the modification timestamp.
type Patch struct {
	Column    string
	Value     any
	UpdatedAt time.Time
}

// MarshalJSON writes the wire form {"<column>": value, "updated_at": ts}.
func (p Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		p.Column:     p.Value,
		"updated_at": p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// ParsePatch decodes the wire form. The body must name exactly one editable
// column; updated_at is optional and only informational.
func ParsePatch(body []byte) (Patch, error) {
	var fields map[string]json.RawMessage

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return Patch{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalidValue)
	}

	var p Patch

	for key, raw := range fields {
		if key == "updated_at" {
			continue
		}
		if p.Column != "" {
			return Patch{}, fmt.Errorf("%w: only one column may be updated at a time", ErrInvalidValue)
		}

		col, ok := LookupColumn(key)
		if !ok {
			return Patch{}, fmt.Errorf("%w: %s", ErrUnknownColumn, key)
		}

		v, err := col.decode(raw)
		if err != nil {
			return Patch{}, err
		}

		p.Column = key
		p.Value = v
	}

	if p.Column == "" {
		return Patch{}, fmt.Errorf("%w: no column to update", ErrInvalidValue)
	}

	return p, nil
}

func (c Column) decode(raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	if c.Kind == KindNumber {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidValue, c.Key)
		}
		return c.Coerce(n.String())
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, c.Key)
	}
	return c.Coerce(s)
}

// Apply writes the patch into p and stamps UpdatedAt.
func (p *Project) Apply(patch Patch) error {
	col, ok := LookupColumn(patch.Column)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, patch.Column)
	}

	if col.Kind == KindNumber {
		switch v := patch.Value.(type) {
		case nil:
			p.Year = nil
		case int64:
			p.Year = &v
		default:
			return fmt.Errorf("%w: %s", ErrInvalidValue, col.Key)
		}
	} else {
		var s *string
		switch v := patch.Value.(type) {
		case nil:
		case string:
			s = &v
		default:
			return fmt.Errorf("%w: %s", ErrInvalidValue, col.Key)
		}

		switch col.Key {
		case "job_number":
			p.JobNumber = s
		case "name":
			p.Name = s
		case "jam_sent":
			p.JamSent = s
		case "jam_confirmed":
			p.JamConfirmed = s
		case "notes":
			p.Notes = s
		case "material_orders":
			p.MaterialOrders = s
		case "owner":
			p.Owner = s
		}
	}

	ts := patch.UpdatedAt
	p.UpdatedAt = &ts
	return nil
}
