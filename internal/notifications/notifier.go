package notifications

import (
	"context"
	"time"
)

type LoginLinkInput struct {
	Email     string
	URL       string
	ExpiresAt time.Time
	RequestID string
}

type Notifier interface {
	SendLoginLink(ctx context.Context, input LoginLinkInput) error
}
