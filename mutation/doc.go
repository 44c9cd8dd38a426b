// Package mutation applies remote writes to cached state with optimistic
// update and rollback.
//
// A Coordinator runs each Mutation through a fixed sequence:
//
//  1. Speculate computes writes from the current cache state. In-flight
//     fetches for those keys are canceled, the entries are captured in a
//     cache.Snapshot and the writes are applied immediately.
//  2. Do performs the remote call.
//  3. On success, Commit runs, the Invalidate keys are marked stale and the
//     success notification is sent.
//  4. On failure, the snapshot is restored, Invalidate keys are left alone
//     and exactly one notification is sent.
//
// The snapshot is discarded in every case. Rollback touches only the keys
// the failing mutation wrote.
//
// # Invalidation scope
//
// Invalidate keys are treated as prefixes by default, so invalidating
// ["appointments"] marks every month stale. WithScope(ScopeExact) narrows
// invalidation to the listed keys.
package mutation
