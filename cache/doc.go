// Package cache provides the keyed, time-aware store behind the query client.
//
// A Store maps hierarchical Keys to entries holding the last fetched value,
// its status, and its timestamps. Consumers subscribe to keys and receive
// immutable EntryView snapshots in the order changes happened for that key.
// Entries nobody observes are evicted after their EvictAfter window.
//
// In-flight fetches are tracked by a Registry that tags each fetch with a
// generation. A result whose generation is no longer current is discarded,
// so a superseded fetch can never overwrite newer data.
//
// Capture and Restore provide the single-use snapshot the mutation
// coordinator uses to roll back speculative writes.
package cache
