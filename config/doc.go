// Package config loads querycache settings from the environment.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	store := cache.NewStore(cfg.Policy())
//	client := query.NewClient(store, query.WithDefaults(cfg.QueryDefaults()))
//
// Unset variables take the defaults of the original booking client: data
// is trusted for 10 minutes, unobserved entries are dropped after 15, and
// mount, focus and reconnect do not refetch.
package config
