package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds an operation. The operation receives a context with the
// deadline; if it ignores the context, Execute still returns at the deadline
// and the operation's eventual result is dropped.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout wrapper. Non-positive durations default to 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the configured timeout.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op with the timeout applied.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
