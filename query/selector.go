package query

import (
	"sync"

	"github.com/jonwraymond/querycache/cache"
)

// Projection derives a view of cached data. ID identifies the projection so
// that results can be reused; two projections with the same ID must compute
// the same result. A nil Fn returns the data unchanged.
type Projection[T any] struct {
	ID string
	Fn func(T) T
}

// Selector memoizes a projection of typed entry data. The result is
// recomputed only when the entry version or the projection changes.
type Selector[T any] struct {
	mu      sync.Mutex
	key     string
	version uint64
	proj    string
	valid   bool
	out     T
}

// Select returns p applied to the data in v. It reports false when v holds
// no data of type T.
func (s *Selector[T]) Select(v cache.EntryView, p Projection[T]) (T, bool) {
	data, ok := ViewAs[T](v)
	if !ok {
		var zero T
		return zero, false
	}
	if p.Fn == nil {
		return data, true
	}

	id := v.Key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid && s.key == id && s.version == v.Version && s.proj == p.ID {
		return s.out, true
	}
	s.out = p.Fn(data)
	s.key, s.version, s.proj, s.valid = id, v.Version, p.ID, true
	return s.out, true
}

// Project reads key from store and applies p through sel, so repeated
// calls by the same caller reuse the last result. A nil sel recomputes on
// every call.
func Project[T any](store *cache.Store, key cache.Key, sel *Selector[T], p Projection[T]) (T, bool) {
	v, ok := store.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	if sel == nil {
		sel = new(Selector[T])
	}
	return sel.Select(v, p)
}
