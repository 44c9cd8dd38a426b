package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/resilience"
)

// ErrorNotifier is told about every failed fetch, once per underlying call.
type ErrorNotifier func(ctx context.Context, key cache.Key, err error)

// Client is the fetch scheduler for one cache.Store.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Dedup: at most one fetch per key is in flight; callers arriving while
//   it runs receive its result.
// - Errors: background fetch failures are recorded on the entry and passed
//   to the ErrorNotifier; they are never returned from trigger methods.
type Client struct {
	store    *cache.Store
	group    singleflight.Group
	mw       *observe.Middleware
	defaults Defaults
	exec     *resilience.Executor
	notify   ErrorNotifier

	mu        sync.Mutex
	fetchers  map[string]FetchFunc
	observers map[*Observer]struct{}
	intervals map[string]*interval
	waiting   map[string]int
	focused   bool
	online    bool
	closed    bool
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	defaults      Defaults
	mw            *observe.Middleware
	maxConcurrent int
	timeout       time.Duration
	retry         *resilience.RetryConfig
	notify        ErrorNotifier
}

// WithDefaults replaces the client-wide trigger defaults.
func WithDefaults(d Defaults) Option {
	return func(c *clientConfig) { c.defaults = d }
}

// WithMiddleware instruments fetches with tracing, metrics and logging.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *clientConfig) { c.mw = mw }
}

// WithMaxConcurrentFetches bounds how many fetches run at once across all
// keys. Excess fetches wait for a slot.
func WithMaxConcurrentFetches(n int) Option {
	return func(c *clientConfig) { c.maxConcurrent = n }
}

// WithFetchTimeout fails fetches that take longer than d.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithFetchRetry retries a failing fetch before its error is recorded.
// The error backoff window starts only once the last attempt fails.
func WithFetchRetry(cfg resilience.RetryConfig) Option {
	return func(c *clientConfig) { c.retry = &cfg }
}

// WithErrorNotifier reports fetch failures, e.g. to a toast sink.
func WithErrorNotifier(fn ErrorNotifier) Option {
	return func(c *clientConfig) { c.notify = fn }
}

// NewClient creates a scheduler over store. The client registers itself for
// the store's invalidation and eviction hooks.
func NewClient(store *cache.Store, opts ...Option) *Client {
	cfg := clientConfig{defaults: DefaultDefaults()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mw == nil {
		cfg.mw = observe.NewNoopMiddleware()
	}
	if cfg.defaults.OnMount == MountDefault {
		cfg.defaults.OnMount = MountIfStale
	}

	var execOpts []resilience.ExecutorOption
	if cfg.maxConcurrent > 0 {
		execOpts = append(execOpts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.maxConcurrent,
			MaxWait:       -1,
		})))
	}
	if cfg.retry != nil && cfg.retry.MaxAttempts > 1 {
		execOpts = append(execOpts, resilience.WithRetry(resilience.NewRetry(*cfg.retry)))
	}
	if cfg.timeout > 0 {
		execOpts = append(execOpts, resilience.WithTimeout(cfg.timeout))
	}

	c := &Client{
		store:     store,
		mw:        cfg.mw,
		defaults:  cfg.defaults,
		exec:      resilience.NewExecutor(execOpts...),
		notify:    cfg.notify,
		fetchers:  make(map[string]FetchFunc),
		observers: make(map[*Observer]struct{}),
		intervals: make(map[string]*interval),
		waiting:   make(map[string]int),
		focused:   true,
		online:    true,
	}
	store.OnRefetch(c.refetchInvalidated)
	store.OnEvict(c.forgetFetcher)
	store.OnCancel(c.forgetFlight)
	return c
}

// Store returns the underlying cache store.
func (c *Client) Store() *cache.Store {
	return c.store
}

// ShouldFetch reports whether an entry in state v needs a fetch at now.
// Idle entries always do. Failed entries do once the error backoff window
// has closed. Successful entries do when stale. In-flight entries never do.
func (c *Client) ShouldFetch(v cache.EntryView, now time.Time) bool {
	switch v.Status {
	case cache.StatusIdle:
		return true
	case cache.StatusFetching:
		return false
	case cache.StatusError:
		return !c.defaults.ErrorBackoff.Window(v.ErrorAt, v.ErrorCount, now)
	default:
		return v.IsStale(now)
	}
}

// Fetch returns the data for key, running fn only when the entry needs it.
// A fetch already in flight for key is joined instead of repeated. When fn
// is nil, the function registered for key by an earlier call is used.
func (c *Client) Fetch(ctx context.Context, key cache.Key, fn FetchFunc, opts Options) (any, error) {
	fn, err := c.register(key, fn)
	if err != nil {
		return nil, err
	}

	v := c.store.Configure(key, opts.Entry...)
	if v.Status != cache.StatusFetching && !c.ShouldFetch(v, c.store.Now()) {
		c.mw.Event(ctx, fetchMeta(key), observe.EventHit)
		if v.Status == cache.StatusError && !v.HasData {
			return nil, v.Err
		}
		return v.Data, nil
	}
	return c.await(ctx, c.start(key, fn, opts.Entry))
}

// Prefetch populates key ahead of any observer. It is a no-op when a fetch
// is in flight or the entry holds fresh data; otherwise it behaves like Fetch.
func (c *Client) Prefetch(ctx context.Context, key cache.Key, fn FetchFunc, opts Options) error {
	fn, err := c.register(key, fn)
	if err != nil {
		return err
	}

	v := c.store.Configure(key, opts.Entry...)
	now := c.store.Now()
	if v.Status == cache.StatusFetching || (v.Status == cache.StatusSuccess && !v.IsStale(now)) {
		return nil
	}
	if !c.ShouldFetch(v, now) {
		return nil
	}
	_, err = c.await(ctx, c.start(key, fn, opts.Entry))
	return err
}

// PrefetchAll prefetches several keys concurrently and returns the first error.
func (c *Client) PrefetchAll(ctx context.Context, reqs ...PrefetchRequest) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range reqs {
		g.Go(func() error {
			return c.Prefetch(gctx, r.Key, r.Fetch, r.Options)
		})
	}
	return g.Wait()
}

// PrefetchRequest is one key for PrefetchAll.
type PrefetchRequest struct {
	Key     cache.Key
	Fetch   FetchFunc
	Options Options
}

// Refetch fetches key regardless of staleness, joining a fetch already in flight.
func (c *Client) Refetch(ctx context.Context, key cache.Key) (any, error) {
	fn, err := c.register(key, nil)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, c.start(key, fn, nil))
}

// Invalidate marks every entry under prefix stale. Observed entries are
// refetched in the background.
func (c *Client) Invalidate(prefix cache.Key) int {
	return c.store.Invalidate(prefix)
}

// InvalidateExact marks only the entry for key stale.
func (c *Client) InvalidateExact(key cache.Key) bool {
	return c.store.InvalidateExact(key)
}

// InvalidateAndWait invalidates prefix and waits for the refetches of all
// observed, enabled entries under it. It returns the first fetch error.
func (c *Client) InvalidateAndWait(ctx context.Context, prefix cache.Key) error {
	keys := c.activeKeys(prefix)

	// The invalidation hook must not race the fetches started here.
	c.mu.Lock()
	for _, k := range keys {
		c.waiting[k.String()]++
	}
	c.mu.Unlock()

	c.store.Invalidate(prefix)

	var pending []<-chan singleflight.Result
	for _, key := range keys {
		if fn := c.fetcher(key); fn != nil {
			pending = append(pending, c.start(key, fn, nil))
		}
	}

	c.mu.Lock()
	for _, k := range keys {
		id := k.String()
		if c.waiting[id]--; c.waiting[id] <= 0 {
			delete(c.waiting, id)
		}
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range pending {
		g.Go(func() error {
			_, err := c.await(gctx, ch)
			if errors.Is(err, cache.ErrSuperseded) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Remove deletes every entry under prefix and aborts their fetches.
func (c *Client) Remove(prefix cache.Key) []cache.Key {
	removed := c.store.Remove(prefix)
	c.mu.Lock()
	for _, k := range removed {
		id := k.String()
		if !c.observedLocked(id) {
			delete(c.fetchers, id)
		}
	}
	c.mu.Unlock()
	return removed
}

// Cancel aborts the in-flight fetch for key. Waiters receive
// cache.ErrFetchCanceled and the next request starts a new fetch.
func (c *Client) Cancel(key cache.Key) bool {
	canceled := c.store.Cancel(key)
	if canceled {
		c.mw.Event(context.Background(), fetchMeta(key), observe.EventCanceled)
	}
	return canceled
}

// SetFocused records foreground visibility. Regaining focus triggers a
// staleness check for observers with focus refetch enabled.
func (c *Client) SetFocused(focused bool) {
	c.mu.Lock()
	regained := focused && !c.focused
	c.focused = focused
	c.mu.Unlock()

	if regained {
		c.triggerAll(func(o *Observer) bool { return o.opts.OnFocus.resolve(c.defaults.OnFocus) })
	}
}

// SetOnline records network connectivity. Reconnecting triggers a
// staleness check for observers with reconnect refetch enabled.
func (c *Client) SetOnline(online bool) {
	c.mu.Lock()
	regained := online && !c.online
	c.online = online
	c.mu.Unlock()

	if regained {
		c.triggerAll(func(o *Observer) bool { return o.opts.OnReconnect.resolve(c.defaults.OnReconnect) })
	}
}

// Close releases every observer, stops interval timers and closes the store.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	observers := make([]*Observer, 0, len(c.observers))
	for o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o.Release()
	}
	return c.store.Close()
}

// start joins or launches the fetch for key.
func (c *Client) start(key cache.Key, fn FetchFunc, entryOpts []cache.EntryOption) <-chan singleflight.Result {
	if c.store.InFlight(key) {
		c.mw.Event(context.Background(), fetchMeta(key), observe.EventCoalesced)
	}
	return c.group.DoChan(key.String(), func() (any, error) {
		return c.run(key, fn, entryOpts)
	})
}

// forgetFlight runs under the store lock just before a fetch is canceled,
// so a caller arriving after the cancellation starts a new flight.
func (c *Client) forgetFlight(key cache.Key) {
	c.group.Forget(key.String())
}

func (c *Client) run(key cache.Key, fn FetchFunc, entryOpts []cache.EntryOption) (any, error) {
	meta := fetchMeta(key)
	flight, err := c.store.StartFetch(context.Background(), key, entryOpts...)
	if err != nil {
		return nil, err
	}
	ctx := flight.Context()

	data, fetchErr := c.mw.Run(ctx, meta, func(ctx context.Context) (any, error) {
		var out any
		err := c.exec.Execute(ctx, func(ctx context.Context) error {
			v, err := fn(ctx, key)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})

	view, err := c.store.FinishFetch(flight, data, fetchErr)
	if errors.Is(err, cache.ErrSuperseded) || errors.Is(err, cache.ErrFetchCanceled) {
		c.mw.Event(ctx, meta, observe.EventDiscarded)
		return nil, err
	}
	// Callers arriving from here on must start a new fetch instead of
	// joining this finished one.
	c.group.Forget(key.String())
	if err != nil {
		if c.notify != nil {
			c.notify(context.WithoutCancel(ctx), key, err)
		}
		return nil, err
	}
	return view.Data, nil
}

func (c *Client) await(ctx context.Context, ch <-chan singleflight.Result) (any, error) {
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// background launches a fetch nobody waits for.
func (c *Client) background(key cache.Key, fn FetchFunc, entryOpts []cache.EntryOption) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed || fn == nil {
		return
	}
	c.start(key, fn, entryOpts)
}

func (c *Client) register(key cache.Key, fn FetchFunc) (FetchFunc, error) {
	id := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()

	if fn != nil {
		c.fetchers[id] = fn
		return fn, nil
	}
	if fn = c.fetchers[id]; fn == nil {
		return nil, ErrNoFetcher
	}
	return fn, nil
}

func (c *Client) fetcher(key cache.Key) FetchFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchers[key.String()]
}

func (c *Client) forgetFetcher(key cache.Key) {
	id := key.String()
	c.mu.Lock()
	if !c.observedLocked(id) {
		delete(c.fetchers, id)
	}
	c.mu.Unlock()
}

func (c *Client) observedLocked(id string) bool {
	for o := range c.observers {
		if o.id == id {
			return true
		}
	}
	return false
}

// refetchInvalidated is the store's invalidation hook.
func (c *Client) refetchInvalidated(key cache.Key) {
	if !c.hasEnabledObserver(key) {
		return
	}
	c.background(key, c.fetcher(key), nil)
}

func (c *Client) hasEnabledObserver(key cache.Key) bool {
	id := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiting[id] > 0 {
		return false
	}
	for o := range c.observers {
		if o.id == id && o.isEnabled() {
			return true
		}
	}
	return false
}

func (c *Client) activeKeys(prefix cache.Key) []cache.Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var keys []cache.Key
	for o := range c.observers {
		if !o.isEnabled() || !prefix.IsPrefixOf(o.key) || seen[o.id] {
			continue
		}
		seen[o.id] = true
		keys = append(keys, o.key)
	}
	return keys
}

func (c *Client) triggerAll(match func(*Observer) bool) {
	type target struct {
		key  cache.Key
		fn   FetchFunc
		opts Options
	}

	c.mu.Lock()
	var targets []target
	for o := range c.observers {
		if o.isEnabled() && match(o) {
			targets = append(targets, target{key: o.key, fn: o.fn, opts: o.opts})
		}
	}
	c.mu.Unlock()

	now := c.store.Now()
	for _, t := range targets {
		if t.fn == nil {
			t.fn = c.fetcher(t.key)
		}
		v, ok := c.store.Get(t.key)
		if !ok || c.ShouldFetch(v, now) {
			c.background(t.key, t.fn, t.opts.Entry)
		}
	}
}

func fetchMeta(key cache.Key) observe.OpMeta {
	return observe.OpMeta{Kind: observe.OpFetch, Family: key.Family(), Key: key.String()}
}
