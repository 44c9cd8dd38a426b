package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/querycache/observe"
)

// Listener receives a snapshot every time the entry for a subscribed key changes.
type Listener func(EntryView)

type notification struct {
	view      EntryView
	listeners []Listener
}

// dispatcher delivers notifications one at a time in enqueue order.
// Enqueue happens under the store lock, so the queue order is the order the
// state changes happened. Whichever goroutine finds the dispatcher idle drains
// the queue; listeners may call back into the store and their own
// notifications are appended and delivered by the same drain loop.
type dispatcher struct {
	mu      sync.Mutex
	queue   []notification
	running bool
	logger  observe.Logger
}

func (d *dispatcher) enqueue(n notification) {
	if len(n.listeners) == 0 {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, n)
	d.mu.Unlock()
}

func (d *dispatcher) drain() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true

	for len(d.queue) > 0 {
		n := d.queue[0]
		d.queue[0] = notification{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		for _, l := range n.listeners {
			d.deliver(l, n.view)
		}

		d.mu.Lock()
	}
	d.running = false
	d.mu.Unlock()
}

func (d *dispatcher) deliver(l Listener, v EntryView) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(context.Background(), "listener panicked",
				observe.Field{Key: "key", Value: v.Key.String()},
				observe.Field{Key: "panic", Value: fmt.Sprint(r)},
			)
		}
	}()
	l(v)
}
