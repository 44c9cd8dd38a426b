package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/querycache/cache"
)

// StoreCheckerConfig configures StoreChecker.
type StoreCheckerConfig struct {
	// DegradedErrorRatio is the share of entries in error status at or
	// above which the store is reported degraded.
	// Default: 0.5
	DegradedErrorRatio float64

	// MaxInFlight reports the store degraded when more fetches than this
	// are running. Zero disables the check.
	MaxInFlight int
}

// StoreChecker checks a cache.Store.
type StoreChecker struct {
	store  *cache.Store
	config StoreCheckerConfig
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(store *cache.Store, config StoreCheckerConfig) *StoreChecker {
	if config.DegradedErrorRatio <= 0 || config.DegradedErrorRatio > 1 {
		config.DegradedErrorRatio = 0.5
	}
	return &StoreChecker{store: store, config: config}
}

// Name returns "cache".
func (c *StoreChecker) Name() string {
	return "cache"
}

// Check inspects the store counters.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	st := c.store.Stats()
	details := map[string]any{
		"entries":     st.Entries,
		"fetching":    st.Fetching,
		"errors":      st.Errors,
		"subscribers": st.Subscribers,
		"in_flight":   st.InFlight,
	}

	if st.Closed {
		return Unhealthy("store closed", cache.ErrClosed).WithDetails(details)
	}

	ratio := 0.0
	if st.Entries > 0 {
		ratio = float64(st.Errors) / float64(st.Entries)
	}
	details["error_ratio"] = ratio

	if st.Entries > 0 && ratio >= c.config.DegradedErrorRatio {
		return Degraded(fmt.Sprintf("%d of %d entries failed", st.Errors, st.Entries)).WithDetails(details)
	}
	if c.config.MaxInFlight > 0 && st.InFlight > c.config.MaxInFlight {
		return Degraded(fmt.Sprintf("%d fetches in flight", st.InFlight)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d entries", st.Entries)).WithDetails(details)
}
