package cache

import "time"

// Policy holds the store-wide lifetime defaults for entries.
type Policy struct {
	// StaleAfter is how long fetched data is trusted without a refetch.
	// Zero means data is stale as soon as any time has passed.
	StaleAfter time.Duration

	// EvictAfter is how long an unobserved entry is kept before removal.
	// It should be at least StaleAfter; this is not enforced.
	EvictAfter time.Duration
}

// DefaultPolicy returns the default lifetime policy.
// StaleAfter: 10 minutes, EvictAfter: 15 minutes
func DefaultPolicy() Policy {
	return Policy{
		StaleAfter: 10 * time.Minute,
		EvictAfter: 15 * time.Minute,
	}
}

// EntryOption overrides a policy value for a single entry.
type EntryOption func(*entryConfig)

type entryConfig struct {
	staleAfter    time.Duration
	hasStaleAfter bool
	evictAfter    time.Duration
	hasEvictAfter bool
}

// WithStaleAfter overrides the staleness window of an entry.
func WithStaleAfter(d time.Duration) EntryOption {
	return func(c *entryConfig) {
		if d < 0 {
			d = 0
		}
		c.staleAfter = d
		c.hasStaleAfter = true
	}
}

// WithEvictAfter overrides the inactivity window after which an entry is removed.
func WithEvictAfter(d time.Duration) EntryOption {
	return func(c *entryConfig) {
		if d < 0 {
			d = 0
		}
		c.evictAfter = d
		c.hasEvictAfter = true
	}
}

func applyEntryOptions(opts []EntryOption) entryConfig {
	var c entryConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
