package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // per send
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // open time before a trial send
	HalfOpenMaxCalls int           // concurrent trial sends
}

func (c ProtectedNotifierConfig) withDefaults() ProtectedNotifierConfig {
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 15 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// ProtectedNotifier guards a mail transport with a timeout and a circuit
// breaker, so a dead transport fails login link jobs fast and they are
// rescheduled instead of piling up on the worker.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trials   int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
		state: StateClosed,
	}
}

func (n *ProtectedNotifier) SendLoginLink(ctx context.Context, input LoginLinkInput) error {
	if retryAt, ok := n.acquire(); !ok {
		return fmt.Errorf("%w until %s", ErrCircuitOpen, retryAt.Format(time.RFC3339))
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := n.inner.SendLoginLink(sendCtx, input)

	// the caller giving up says nothing about the transport
	if err != nil && ctx.Err() != nil {
		n.release()
		return err
	}

	n.record(err)
	return err
}

// acquire reports whether a send may go through, and when the breaker
// will next allow one if not.
func (n *ProtectedNotifier) acquire() (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateOpen:
		reopen := n.openedAt.Add(n.cfg.Cooldown)
		if n.now().Before(reopen) {
			return reopen, false
		}
		n.state = StateHalfOpen
		n.trials = 1
		return time.Time{}, true
	case StateHalfOpen:
		if n.trials >= n.cfg.HalfOpenMaxCalls {
			return n.now().Add(n.cfg.Cooldown), false
		}
		n.trials++
		return time.Time{}, true
	default:
		return time.Time{}, true
	}
}

func (n *ProtectedNotifier) release() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == StateHalfOpen && n.trials > 0 {
		n.trials--
	}
}

func (n *ProtectedNotifier) record(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	wasTrial := n.state == StateHalfOpen
	if wasTrial && n.trials > 0 {
		n.trials--
	}

	if err == nil {
		n.failures = 0
		n.state = StateClosed
		return
	}

	n.failures++
	if wasTrial || n.failures >= n.cfg.FailureThreshold {
		n.state = StateOpen
		n.openedAt = n.now()
	}
}

func (n *ProtectedNotifier) State() BreakerState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}
