package project

import (
	"errors"
	"time"
)

// Project is one row of the tracking sheet.
// Nullable columns are pointers; dates travel as YYYY-MM-DD strings.
type Project struct {
	ID             string     `json:"id"`
	JobNumber      *string    `json:"job_number"`
	Year           *int64     `json:"year"`
	Name           *string    `json:"name"`
	Owner          *string    `json:"owner"`
	JamSent        *string    `json:"jam_sent"`
	JamConfirmed   *string    `json:"jam_confirmed"`
	MaterialOrders *string    `json:"material_orders"`
	Notes          *string    `json:"notes"`
	CreatedBy      *string    `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

var (
	ErrNotFound      = errors.New("project not found")
	ErrForbidden     = errors.New("project belongs to another user")
	ErrUnknownColumn = errors.New("unknown column")
	ErrInvalidValue  = errors.New("invalid value for column")
)

// CreateRequest is the insert payload. CreatedBy is filled from the session, never from the body.
type CreateRequest struct {
	JobNumber      string  `json:"job_number"`
	Year           *int64  `json:"year"`
	Name           string  `json:"name"`
	Owner          string  `json:"owner" binding:"omitempty,oneof=Piaser Lazzarin Reato Mattiuzzo Saccon Savio"`
	JamSent        *string `json:"jam_sent" binding:"omitempty,datetime=2006-01-02"`
	JamConfirmed   *string `json:"jam_confirmed" binding:"omitempty,datetime=2006-01-02"`
	MaterialOrders *string `json:"material_orders" binding:"omitempty,datetime=2006-01-02"`
	Notes          string  `json:"notes"`
	CreatedBy      string  `json:"created_by,omitempty"`
}

// NewFromCreateRequest builds the row the store will persist.
func NewFromCreateRequest(id string, req CreateRequest, now time.Time) Project {
	createdBy := req.CreatedBy

	return Project{
		ID:             id,
		JobNumber:      strPtr(req.JobNumber),
		Year:           req.Year,
		Name:           strPtr(req.Name),
		Owner:          strPtr(req.Owner),
		JamSent:        req.JamSent,
		JamConfirmed:   req.JamConfirmed,
		MaterialOrders: req.MaterialOrders,
		Notes:          strPtr(req.Notes),
		CreatedBy:      &createdBy,
		CreatedAt:      now,
		UpdatedAt:      &now,
	}
}

// CreatorID returns created_by or "" for rows without a recorded creator.
func (p Project) CreatorID() string {
	if p.CreatedBy == nil {
		return ""
	}
	return *p.CreatedBy
}

func strPtr(s string) *string {
	return &s
}
