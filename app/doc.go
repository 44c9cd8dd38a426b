// Package app assembles a booking client from configuration: telemetry,
// the cache store, the query client, the mutation coordinator, the session
// and the booking service, plus a health aggregator over the store.
package app
