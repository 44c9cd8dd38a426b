package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()
	if cfg.MaxAttempts != 3 || cfg.Backoff.Initial != 100*time.Millisecond || cfg.Backoff.Max != 30*time.Second {
		t.Errorf("Config() = %+v", cfg)
	}
	if cfg.RetryIf == nil {
		t.Error("RetryIf not defaulted")
	}
}

func TestRetry_Execute(t *testing.T) {
	permanent := errors.New("permanent")
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, errors.New("x"), 1, false},
		{"succeeds on third", 2, errors.New("x"), 3, false},
		{"out of attempts", 5, errors.New("x"), 3, true},
		{"not retryable", 5, permanent, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var retries []int
			r := NewRetry(RetryConfig{
				MaxAttempts: 3,
				Backoff:     Backoff{Strategy: BackoffNone},
				RetryIf:     func(err error) bool { return !errors.Is(err, permanent) },
				OnRetry:     func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) },
			})

			calls := 0
			err := r.Execute(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if len(retries) != tt.wantCalls-1 {
				t.Errorf("OnRetry attempts = %v", retries)
			}
		})
	}
}

func TestRetry_ContextCanceledDuringDelay(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxAttempts: 5,
		Backoff:     Backoff{Strategy: BackoffConstant, Initial: time.Hour},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := r.Execute(ctx, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, context.DeadlineExceeded) || calls != 1 {
		t.Errorf("Execute() = %v after %d calls", err, calls)
	}
}
