// Package health reports whether a cache instance is working.
//
// A Checker returns a Result with one of three statuses. StoreChecker looks
// at a cache.Store: it is unhealthy once the store is closed and degraded
// when too many entries hold a failed fetch. Aggregator runs several
// checkers concurrently and folds their results into one status.
//
//	agg := health.NewAggregator()
//	agg.Register("cache", health.NewStoreChecker(store, health.StoreCheckerConfig{}))
//	res := agg.Checker().Check(ctx)
package health
