package jobs

import "time"

// LoginLinkPayload carries everything the worker needs to send the email.
// The URL holds the raw one-time token; it is never persisted anywhere else.
type LoginLinkPayload struct {
	LinkID    string    `json:"linkId"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	RequestID string    `json:"requestId,omitempty"`
}
