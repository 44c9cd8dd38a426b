package resilience

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"default first", DefaultBackoff(), 1, time.Second},
		{"default doubles", DefaultBackoff(), 3, 4 * time.Second},
		{"default capped", DefaultBackoff(), 10, 30 * time.Second},
		{"huge attempt capped", DefaultBackoff(), 500, 30 * time.Second},
		{"zero attempt", DefaultBackoff(), 0, 0},
		{"linear", Backoff{Strategy: BackoffLinear, Initial: time.Second}, 3, 3 * time.Second},
		{"constant", Backoff{Strategy: BackoffConstant, Initial: time.Second}, 7, time.Second},
		{"none", Backoff{Strategy: BackoffNone, Initial: time.Second}, 3, 0},
		{"no initial", Backoff{Strategy: BackoffExponential}, 3, 0},
		{"default multiplier", Backoff{Initial: time.Second}, 2, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backoff.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoff_Jitter(t *testing.T) {
	b := Backoff{Strategy: BackoffConstant, Initial: time.Second, Jitter: true}
	for range 50 {
		d := b.Delay(1)
		if d < time.Second || d >= time.Second+time.Second/4 {
			t.Fatalf("Delay() = %v, want within [1s, 1.25s)", d)
		}
	}
}

func TestBackoff_Window(t *testing.T) {
	failedAt := time.Date(2022, 6, 15, 9, 0, 0, 0, time.UTC)
	b := DefaultBackoff()

	tests := []struct {
		name     string
		failedAt time.Time
		attempt  int
		now      time.Time
		want     bool
	}{
		{"inside first window", failedAt, 1, failedAt.Add(500 * time.Millisecond), true},
		{"first window over", failedAt, 1, failedAt.Add(time.Second), false},
		{"second window longer", failedAt, 2, failedAt.Add(1500 * time.Millisecond), true},
		{"never failed", time.Time{}, 1, failedAt, false},
		{"no failures", failedAt, 0, failedAt, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Window(tt.failedAt, tt.attempt, tt.now); got != tt.want {
				t.Errorf("Window() = %v, want %v", got, tt.want)
			}
		})
	}
}
