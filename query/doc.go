// Package query schedules fetches against a cache.Store.
//
// A Client decides when the fetch function for a key must run: on first
// observation, when data went stale, on a refresh interval, when the window
// regains focus, when the network comes back, and after invalidation. At most
// one fetch per key is in flight; concurrent requests join it.
//
// Observers are scoped subscriptions. Every Observe must be paired with
// Release, typically deferred:
//
//	obs := client.Observe(key, fetchAppointments, query.Options{
//	    Entry:           []cache.EntryOption{cache.WithStaleAfter(0)},
//	    RefetchInterval: time.Minute,
//	}, func(v cache.EntryView) { render(v) })
//	defer obs.Release()
//
// Selector derives memoized projections from cached data without fetching.
package query
