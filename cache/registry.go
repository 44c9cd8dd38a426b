package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// Registry associates each in-flight fetch with its cancellation handle and
// generation. Generations come from a single counter per registry, so they
// are strictly increasing for every key, even across removal and re-creation.
type Registry struct {
	mu      sync.Mutex
	seq     atomic.Uint64
	flights map[string]*flight
}

type flight struct {
	gen    uint64
	cancel context.CancelCauseFunc
}

// NewRegistry creates an empty cancellation registry.
func NewRegistry() *Registry {
	return &Registry{flights: make(map[string]*flight)}
}

// Begin registers a new fetch for id and returns its generation and context.
// A fetch already registered for id is canceled with cause ErrSuperseded.
func (r *Registry) Begin(parent context.Context, id string) (uint64, context.Context) {
	ctx, cancel := context.WithCancelCause(parent)
	gen := r.seq.Add(1)

	r.mu.Lock()
	prev := r.flights[id]
	r.flights[id] = &flight{gen: gen, cancel: cancel}
	r.mu.Unlock()

	if prev != nil {
		prev.cancel(ErrSuperseded)
	}
	return gen, ctx
}

// Cancel aborts the fetch registered for id, if any, and clears it. The
// fetch context is canceled with cause ErrFetchCanceled.
// Cancellation is best-effort: the fetch function may still return a value,
// which FinishFetch then discards.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	f := r.flights[id]
	delete(r.flights, id)
	r.mu.Unlock()

	if f == nil {
		return false
	}
	f.cancel(ErrFetchCanceled)
	return true
}

// Finish clears the registration for id if gen is still the current one.
// It reports whether gen was current.
func (r *Registry) Finish(id string, gen uint64) bool {
	r.mu.Lock()
	f := r.flights[id]
	current := f != nil && f.gen == gen
	if current {
		delete(r.flights, id)
	}
	r.mu.Unlock()

	if current {
		// release the context's resources
		f.cancel(nil)
	}
	return current
}

// Current returns the generation registered for id, or 0 if none.
func (r *Registry) Current(id string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f := r.flights[id]; f != nil {
		return f.gen
	}
	return 0
}

// InFlight reports whether a fetch is registered for id.
func (r *Registry) InFlight(id string) bool {
	return r.Current(id) != 0
}

// Len returns the number of registered fetches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flights)
}

// CancelAll aborts every registered fetch.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	flights := r.flights
	r.flights = make(map[string]*flight)
	r.mu.Unlock()

	for _, f := range flights {
		f.cancel(ErrFetchCanceled)
	}
}
