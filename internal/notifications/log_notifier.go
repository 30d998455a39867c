package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogNotifier writes login links to the log instead of sending mail.
// It is the delivery channel for local development.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendLoginLink(ctx context.Context, in LoginLinkInput) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	n.log.InfoContext(ctx, "notification.login_link",
		"email", in.Email,
		"url", in.URL,
		"expires_at", in.ExpiresAt.Format(time.RFC3339),
		"request_id", in.RequestID,
	)
	return nil
}
