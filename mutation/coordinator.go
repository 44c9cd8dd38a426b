package mutation

import (
	"context"
	"errors"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/resilience"
)

// State is the lifecycle stage of one mutation run.
type State int

const (
	StatePending State = iota
	StateOptimisticApplied
	StateSettling
	StateCommitted
	StateRolledBack
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateOptimisticApplied:
		return "optimistic-applied"
	case StateSettling:
		return "settling"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// InvalidationScope selects how Mutation.Invalidate keys are matched.
type InvalidationScope int

const (
	// ScopePrefix invalidates every entry under each key.
	ScopePrefix InvalidationScope = iota
	// ScopeExact invalidates only the listed keys.
	ScopeExact
)

// Write is one speculative cache write.
type Write struct {
	Key  cache.Key
	Data any
}

// Reader is the read-only view of the cache handed to Speculate.
type Reader interface {
	Get(key cache.Key) (cache.EntryView, bool)
}

// Mutation describes a remote write and its effect on the cache.
type Mutation[V any] struct {
	// Name labels telemetry and errors.
	Name string

	// Do performs the remote call. Required.
	Do func(ctx context.Context, vars V) (any, error)

	// Speculate returns the optimistic writes for vars, computed from the
	// current cache state. Optional.
	Speculate func(r Reader, vars V) []Write

	// Commit runs after Do succeeds, before invalidation. Optional.
	Commit func(ctx context.Context, vars V, result any)

	// Invalidate lists the keys marked stale after Do succeeds.
	Invalidate []cache.Key

	// Success is sent after commit when its Message is set.
	Success Notification

	// Rollback replaces the error notification when a speculative write
	// was rolled back and its Message is set.
	Rollback Notification
}

// Result reports how a run ended.
type Result struct {
	State       State
	Transitions []State
	Value       any
	RolledBack  bool
}

func (r *Result) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// Coordinator runs mutations against one query client.
//
// Contract:
// - Concurrency: safe for concurrent use; concurrent mutations on disjoint
//   keys roll back independently.
// - Errors: Run returns *MutationError for remote failures and never panics
//   on them.
type Coordinator struct {
	client   *query.Client
	store    *cache.Store
	notifier Notifier
	mw       *observe.Middleware
	exec     *resilience.Executor
	scope    InvalidationScope
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets the sink for success and failure notifications.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithMiddleware instruments remote calls.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Coordinator) {
		if mw != nil {
			c.mw = mw
		}
	}
}

// WithExecutor wraps remote calls with resilience policies.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Coordinator) {
		if e != nil {
			c.exec = e
		}
	}
}

// WithScope sets how Invalidate keys are matched. The default is ScopePrefix.
func WithScope(s InvalidationScope) Option {
	return func(c *Coordinator) { c.scope = s }
}

// NewCoordinator creates a coordinator for client.
func NewCoordinator(client *query.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:   client,
		store:    client.Store(),
		notifier: NopNotifier{},
		mw:       observe.NewNoopMiddleware(),
		exec:     resilience.NewExecutor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify forwards n to the coordinator's notifier.
func (c *Coordinator) Notify(ctx context.Context, n Notification) {
	c.notifier.Notify(ctx, n)
}

// Run executes m with vars.
func Run[V any](ctx context.Context, c *Coordinator, m Mutation[V], vars V) (Result, error) {
	var res Result
	res.enter(StatePending)
	if m.Do == nil {
		return res, ErrNilOperation
	}
	meta := observe.OpMeta{Kind: observe.OpMutation, Family: m.family(), Name: m.Name}

	var snap *cache.Snapshot
	if m.Speculate != nil {
		snap = c.speculate(m.Speculate(c.store, vars))
		if snap != nil {
			res.enter(StateOptimisticApplied)
		}
	}

	res.enter(StateSettling)
	value, err := c.mw.Run(ctx, meta, func(ctx context.Context) (any, error) {
		var out any
		err := c.exec.Execute(ctx, func(ctx context.Context) error {
			v, err := m.Do(ctx, vars)
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

	if err != nil {
		rolledBack := false
		if snap != nil {
			if rerr := c.store.Restore(snap); rerr != nil {
				c.mw.Logger().WithOp(meta).Warn(ctx, "rollback failed", observe.Field{Key: "error", Value: rerr})
			} else {
				rolledBack = true
				c.mw.Event(ctx, meta, observe.EventRollback)
			}
		}
		res.RolledBack = rolledBack
		res.enter(StateRolledBack)

		n := Notification{Message: MessageFromError(err), Severity: SeverityError}
		if rolledBack && m.Rollback.Message != "" {
			n = m.Rollback
		}
		c.notifier.Notify(context.WithoutCancel(ctx), n)
		return res, &MutationError{Name: m.Name, Err: err, RolledBack: rolledBack}
	}

	if snap != nil {
		snap.Discard()
	}
	if m.Commit != nil {
		m.Commit(ctx, vars, value)
	}
	for _, k := range m.Invalidate {
		c.invalidate(k)
	}
	res.Value = value
	res.enter(StateCommitted)
	if m.Success.Message != "" {
		c.notifier.Notify(ctx, m.Success)
	}
	return res, nil
}

// speculate cancels fetches that could overwrite writes, captures the
// touched entries and applies writes. It returns nil when there is nothing
// to write.
func (c *Coordinator) speculate(writes []Write) *cache.Snapshot {
	if len(writes) == 0 {
		return nil
	}
	keys := make([]cache.Key, 0, len(writes))
	for _, w := range writes {
		c.client.Cancel(w.Key)
		keys = append(keys, w.Key)
	}
	snap := c.store.Capture(keys...)
	for _, w := range writes {
		c.store.Write(w.Key, w.Data)
	}
	return snap
}

func (c *Coordinator) invalidate(k cache.Key) {
	if c.scope == ScopeExact {
		c.client.InvalidateExact(k)
		return
	}
	c.client.Invalidate(k)
}

func (m Mutation[V]) family() string {
	if len(m.Invalidate) > 0 {
		return m.Invalidate[0].Family()
	}
	return "mutation"
}

// IsRolledBack reports whether err is a mutation failure whose speculative
// writes were undone.
func IsRolledBack(err error) bool {
	var me *MutationError
	return errors.As(err, &me) && me.RolledBack
}
