package query

import (
	"time"

	"github.com/jonwraymond/querycache/cache"
)

// interval drives the periodic refetch of one key. It is shared by every
// enabled observer of the key and stops when the last one leaves.
type interval struct {
	key   cache.Key
	every time.Duration
	refs  map[*Observer]struct{}
	stop  chan struct{}
}

func (c *Client) acquireIntervalLocked(o *Observer) {
	every := o.opts.RefetchInterval
	if every <= 0 || c.closed {
		return
	}
	iv := c.intervals[o.id]
	if iv == nil {
		iv = &interval{
			key:   o.key,
			every: every,
			refs:  make(map[*Observer]struct{}),
			stop:  make(chan struct{}),
		}
		c.intervals[o.id] = iv
		go c.tick(iv)
	}
	iv.refs[o] = struct{}{}
}

func (c *Client) releaseIntervalLocked(o *Observer) {
	iv := c.intervals[o.id]
	if iv == nil {
		return
	}
	if _, ok := iv.refs[o]; !ok {
		return
	}
	delete(iv.refs, o)
	if len(iv.refs) == 0 {
		close(iv.stop)
		delete(c.intervals, o.id)
	}
}

func (c *Client) tick(iv *interval) {
	t := time.NewTicker(iv.every)
	defer t.Stop()
	for {
		select {
		case <-iv.stop:
			return
		case <-t.C:
			if v, ok := c.store.Get(iv.key); ok && v.Status == cache.StatusFetching {
				continue
			}
			c.background(iv.key, c.fetcher(iv.key), nil)
		}
	}
}
