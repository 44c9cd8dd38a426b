package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays grow with consecutive failures.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases the delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for every attempt.
	BackoffConstant
	// BackoffNone disables the delay entirely.
	BackoffNone
)

// Backoff computes delays after consecutive failures.
type Backoff struct {
	Strategy   BackoffStrategy
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter adds up to 25% random delay.
	Jitter bool
}

// DefaultBackoff returns exponential backoff starting at 1s, capped at 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Strategy:   BackoffExponential,
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}
}

// Delay returns the delay after the given number of consecutive failures.
// attempt is 1-based; values below 1 yield zero.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Strategy == BackoffNone || b.Initial <= 0 {
		return 0
	}

	var delay time.Duration
	switch b.Strategy {
	case BackoffConstant:
		delay = b.Initial
	case BackoffLinear:
		delay = b.Initial * time.Duration(attempt)
	default:
		mult := b.Multiplier
		if mult <= 0 {
			mult = 2.0
		}
		f := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
		if f >= float64(math.MaxInt64) {
			delay = time.Duration(math.MaxInt64)
		} else {
			delay = time.Duration(f)
		}
	}

	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	if b.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Window reports whether a failure that happened at failedAt, being the
// attempt-th consecutive one, still blocks a new attempt at now.
func (b Backoff) Window(failedAt time.Time, attempt int, now time.Time) bool {
	d := b.Delay(attempt)
	if d <= 0 || failedAt.IsZero() {
		return false
	}
	return now.Before(failedAt.Add(d))
}
