package query

import (
	"time"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/resilience"
)

// MountMode controls what happens when an observer attaches to a key.
type MountMode int

const (
	// MountDefault uses the client's default mode.
	MountDefault MountMode = iota
	// MountIfStale fetches when the entry is idle, failed outside its
	// backoff window, or stale.
	MountIfStale
	// MountAlways fetches unless a fetch is already in flight.
	MountAlways
	// MountIfMissing fetches only when the entry holds no data.
	MountIfMissing
)

// String returns the string representation of the mode.
func (m MountMode) String() string {
	switch m {
	case MountIfStale:
		return "if-stale"
	case MountAlways:
		return "always"
	case MountIfMissing:
		return "if-missing"
	default:
		return "default"
	}
}

// Toggle is a tri-state switch that can defer to the client default.
type Toggle int

const (
	// ToggleDefault uses the client-wide setting.
	ToggleDefault Toggle = iota
	// ToggleOn enables the trigger for this observer.
	ToggleOn
	// ToggleOff disables the trigger for this observer.
	ToggleOff
)

func (t Toggle) resolve(def bool) bool {
	switch t {
	case ToggleOn:
		return true
	case ToggleOff:
		return false
	default:
		return def
	}
}

// Defaults are the client-wide trigger settings.
type Defaults struct {
	OnMount     MountMode
	OnFocus     bool
	OnReconnect bool

	// ErrorBackoff is the window after a failed fetch during which
	// triggers do not refetch the entry.
	ErrorBackoff resilience.Backoff
}

// DefaultDefaults returns the standard trigger settings: fetch on mount when
// stale, refetch on focus and reconnect, exponential error backoff.
func DefaultDefaults() Defaults {
	return Defaults{
		OnMount:      MountIfStale,
		OnFocus:      true,
		OnReconnect:  true,
		ErrorBackoff: resilience.DefaultBackoff(),
	}
}

// Options configure a single fetch, prefetch or observer.
type Options struct {
	// Entry overrides the store policy for this key, e.g. cache.WithStaleAfter(0).
	Entry []cache.EntryOption

	// RefetchInterval refetches the key at a fixed period while observed,
	// regardless of staleness. Zero disables it.
	RefetchInterval time.Duration

	OnMount     MountMode
	OnFocus     Toggle
	OnReconnect Toggle

	// Disabled observers subscribe but never fetch until enabled.
	Disabled bool
}
