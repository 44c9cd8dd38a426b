package query

import "errors"

// Sentinel errors for query operations.
var (
	ErrNoFetcher = errors.New("query: no fetch function registered for key")
	ErrDisabled  = errors.New("query: observer is disabled")
	ErrReleased  = errors.New("query: observer already released")
)
