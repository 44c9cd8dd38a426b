package config

import "errors"

// Sentinel errors for configuration.
var (
	ErrInvalidDuration    = errors.New("config: duration must not be negative")
	ErrEvictBeforeStale   = errors.New("config: evict-after must be at least stale-after")
	ErrInvalidBackoff     = errors.New("config: error backoff max must be at least the initial backoff")
	ErrInvalidConcurrency = errors.New("config: max concurrent fetches must not be negative")
	ErrInvalidCount       = errors.New("config: retry and breaker counts must not be negative")
	ErrMissingAPIURL      = errors.New("config: booking api url is required")
)
