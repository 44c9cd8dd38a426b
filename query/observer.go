package query

import (
	"context"

	"github.com/jonwraymond/querycache/cache"
)

// Observer is a scoped subscription to one key. It fetches according to its
// Options and forwards every entry change to its listener.
//
// All fields are guarded by the owning client's mutex.
type Observer struct {
	client   *Client
	key      cache.Key
	id       string
	fn       FetchFunc
	opts     Options
	listener cache.Listener
	sub      *cache.Subscription
	enabled  bool
	released bool
}

// Observe subscribes listener to key and applies the mount trigger.
// The returned observer must be released.
func (c *Client) Observe(key cache.Key, fn FetchFunc, opts Options, listener cache.Listener) *Observer {
	if listener == nil {
		listener = func(cache.EntryView) {}
	}
	o := &Observer{
		client:   c,
		fn:       fn,
		opts:     opts,
		listener: listener,
		enabled:  !opts.Disabled,
	}
	c.attach(o, key, fn)
	c.mount(o)
	return o
}

// Key returns the observed key.
func (o *Observer) Key() cache.Key {
	o.client.mu.Lock()
	defer o.client.mu.Unlock()
	return o.key
}

// Current returns the entry for the observed key. A missing entry yields an
// idle view.
func (o *Observer) Current() cache.EntryView {
	key := o.Key()
	if v, ok := o.client.store.Get(key); ok {
		return v
	}
	return cache.EntryView{Key: key, Status: cache.StatusIdle}
}

// Enabled reports whether the observer is allowed to fetch.
func (o *Observer) Enabled() bool {
	o.client.mu.Lock()
	defer o.client.mu.Unlock()
	return o.isEnabled()
}

// SetEnabled toggles fetching. Enabling applies the mount trigger and starts
// the refresh interval.
func (o *Observer) SetEnabled(enabled bool) {
	c := o.client
	c.mu.Lock()
	if o.released || o.enabled == enabled {
		c.mu.Unlock()
		return
	}
	o.enabled = enabled
	if enabled {
		c.acquireIntervalLocked(o)
	} else {
		c.releaseIntervalLocked(o)
	}
	c.mu.Unlock()

	if enabled {
		c.mount(o)
	}
}

// Refetch fetches the observed key regardless of staleness.
func (o *Observer) Refetch(ctx context.Context) (any, error) {
	c := o.client
	c.mu.Lock()
	switch {
	case o.released:
		c.mu.Unlock()
		return nil, ErrReleased
	case !o.enabled:
		c.mu.Unlock()
		return nil, ErrDisabled
	}
	key, fn, entry := o.key, o.fn, o.opts.Entry
	c.mu.Unlock()

	if fn == nil {
		return c.Refetch(ctx, key)
	}
	return c.await(ctx, c.start(key, fn, entry))
}

// Rekey moves the observer to a new key, as when the parameters of the
// observed resource change. If nobody else observes the old key, its
// in-flight fetch is canceled.
func (o *Observer) Rekey(key cache.Key, fn FetchFunc) {
	c := o.client
	c.mu.Lock()
	if o.released {
		c.mu.Unlock()
		return
	}
	if cache.Equal(o.key, key) {
		if fn != nil {
			o.fn = fn
			c.fetchers[o.id] = fn
		}
		c.mu.Unlock()
		return
	}
	old := o.key
	if fn == nil {
		fn = o.fn
	}
	c.detachLocked(o)
	c.mu.Unlock()

	if c.store.Subscribers(old) == 0 {
		c.Cancel(old)
	}

	c.attach(o, key, fn)
	c.mount(o)
}

// Release drops the subscription and stops the refresh interval.
// It is idempotent.
func (o *Observer) Release() {
	c := o.client
	c.mu.Lock()
	if o.released {
		c.mu.Unlock()
		return
	}
	o.released = true
	c.detachLocked(o)
	c.mu.Unlock()
}

func (o *Observer) isEnabled() bool {
	return o.enabled && !o.released
}

func (o *Observer) deliver(v cache.EntryView) {
	o.listener(v)
}

// attach subscribes o to key and starts its interval.
func (c *Client) attach(o *Observer, key cache.Key, fn FetchFunc) {
	sub := c.store.Subscribe(key, o.deliver, o.opts.Entry...)

	c.mu.Lock()
	if c.closed {
		o.released = true
		c.mu.Unlock()
		sub.Release()
		return
	}
	o.key = key
	o.id = key.String()
	o.fn = fn
	o.sub = sub
	if fn != nil {
		c.fetchers[o.id] = fn
	}
	c.observers[o] = struct{}{}
	if o.enabled {
		c.acquireIntervalLocked(o)
	}
	c.mu.Unlock()
}

func (c *Client) detachLocked(o *Observer) {
	delete(c.observers, o)
	c.releaseIntervalLocked(o)
	if o.sub != nil {
		// Subscription.Release only takes the store lock.
		o.sub.Release()
		o.sub = nil
	}
}

// mount applies the observer's mount trigger.
func (c *Client) mount(o *Observer) {
	c.mu.Lock()
	if !o.isEnabled() {
		c.mu.Unlock()
		return
	}
	key, fn, opts := o.key, o.fn, o.opts
	mode := opts.OnMount
	if mode == MountDefault {
		mode = c.defaults.OnMount
	}
	c.mu.Unlock()

	if fn == nil {
		fn = c.fetcher(key)
	}

	v, ok := c.store.Get(key)
	if !ok {
		c.background(key, fn, opts.Entry)
		return
	}

	var fetch bool
	switch mode {
	case MountAlways:
		fetch = v.Status != cache.StatusFetching
	case MountIfMissing:
		fetch = !v.HasData && c.ShouldFetch(v, c.store.Now())
	default:
		fetch = c.ShouldFetch(v, c.store.Now())
	}
	if fetch {
		c.background(key, fn, opts.Entry)
	}
}
