package cache

import "time"

// Status is the fetch status of an entry.
type Status int

const (
	// StatusIdle means no fetch has completed and none is running.
	StatusIdle Status = iota
	// StatusFetching means a fetch is in flight.
	StatusFetching
	// StatusSuccess means Data holds the last successful result.
	StatusSuccess
	// StatusError means the last fetch failed; Data may still hold older data.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// EntryView is an immutable snapshot of an entry handed to readers and
// subscribers. Data is shared, not copied; treat it as read-only.
type EntryView struct {
	Key         Key
	Status      Status
	Data        any
	HasData     bool
	Err         error
	FetchedAt   time.Time
	ErrorAt     time.Time
	ErrorCount  int
	StaleAfter  time.Duration
	EvictAfter  time.Duration
	Subscribers int
	Invalidated bool

	// Version changes every time Data changes and is never reused within a
	// store, even after the entry is removed and created again. Projections
	// memoize on it.
	Version uint64
}

// IsStale reports whether the data can no longer be trusted at now.
// Entries without data and invalidated entries are always stale.
func (v EntryView) IsStale(now time.Time) bool {
	if !v.HasData || v.Invalidated || v.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(v.FetchedAt) > v.StaleAfter
}

// entry is the store-owned mutable state for one key.
type entry struct {
	key         Key
	status      Status
	data        any
	hasData     bool
	err         error
	fetchedAt   time.Time
	errorAt     time.Time
	errorCount  int
	staleAfter  time.Duration
	evictAfter  time.Duration
	invalidated bool
	version     uint64

	evictTimer *time.Timer
	evictSeq   uint64
}

func (e *entry) view(subscribers int) EntryView {
	return EntryView{
		Key:         e.key,
		Status:      e.status,
		Data:        e.data,
		HasData:     e.hasData,
		Err:         e.err,
		FetchedAt:   e.fetchedAt,
		ErrorAt:     e.errorAt,
		ErrorCount:  e.errorCount,
		StaleAfter:  e.staleAfter,
		EvictAfter:  e.evictAfter,
		Subscribers: subscribers,
		Invalidated: e.invalidated,
		Version:     e.version,
	}
}

// settledStatus is the status an entry returns to when a fetch stops
// without producing a result.
func (e *entry) settledStatus() Status {
	switch {
	case e.err != nil && e.errorAt.After(e.fetchedAt):
		return StatusError
	case e.hasData:
		return StatusSuccess
	default:
		return StatusIdle
	}
}
