package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/querycache/observe"
)

// Store is a process-local cache instance. It exclusively owns every entry;
// other components read EntryView snapshots and mutate entries only through
// Store methods.
//
// Contract:
// - Concurrency: safe for concurrent use; every method is one atomic step.
// - Ordering: notifications for a key arrive in the order its state changed.
// - Errors: fetch failures are recorded on entries, never returned as panics.
type Store struct {
	mu       sync.Mutex
	policy   Policy
	now      func() time.Time
	logger   observe.Logger
	entries  map[string]*entry
	subs     map[string]map[uint64]Listener
	subSeq   uint64
	version  uint64
	registry *Registry
	dispatch *dispatcher
	hooks    []func(Key)
	onEvict  []func(Key)
	onCancel []func(Key)
	closed   bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for entry lifecycle events.
func WithLogger(l observe.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store with the given policy.
func NewStore(policy Policy, opts ...StoreOption) *Store {
	s := &Store{
		policy:   policy,
		now:      time.Now,
		logger:   observe.NewNopLogger(),
		entries:  make(map[string]*entry),
		subs:     make(map[string]map[uint64]Listener),
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatch = &dispatcher{logger: s.logger}
	return s
}

// Policy returns the store-wide defaults.
func (s *Store) Policy() Policy {
	return s.policy
}

// Now returns the current time according to the store clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// OnRefetch registers fn to be called for every observed entry hit by
// Invalidate. The query client uses it to schedule refetches.
func (s *Store) OnRefetch(fn func(Key)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// OnEvict registers fn to be called after an entry is evicted for inactivity.
func (s *Store) OnEvict(fn func(Key)) {
	s.mu.Lock()
	s.onEvict = append(s.onEvict, fn)
	s.mu.Unlock()
}

// OnCancel registers fn to be called when the fetch for a key is about to
// be canceled by Cancel, Remove or eviction. fn runs with the store lock
// held, before the cancellation, and must not call back into the store.
// A fetch started after fn returns is never affected by that cancellation.
func (s *Store) OnCancel(fn func(Key)) {
	s.mu.Lock()
	s.onCancel = append(s.onCancel, fn)
	s.mu.Unlock()
}

func (s *Store) cancelLocked(id string, key Key) bool {
	if !s.registry.InFlight(id) {
		return false
	}
	for _, fn := range s.onCancel {
		fn(key)
	}
	return s.registry.Cancel(id)
}

// Get returns a snapshot of the entry for key. It never triggers a fetch.
func (s *Store) Get(key Key) (EntryView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e, ok := s.entries[id]
	if !ok {
		return EntryView{}, false
	}
	return e.view(len(s.subs[id])), true
}

// Configure creates the entry for key if needed and applies per-entry
// overrides. Subscribers are not notified.
func (s *Store) Configure(key Key, opts ...EntryOption) EntryView {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e := s.ensureLocked(id, key, applyEntryOptions(opts))
	return e.view(len(s.subs[id]))
}

// Write stores data as the latest successful value for key.
func (s *Store) Write(key Key, data any, opts ...EntryOption) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	id := key.String()
	e := s.ensureLocked(id, key, applyEntryOptions(opts))
	s.writeLocked(e, data)
	s.notifyLocked(id, e)
	s.mu.Unlock()

	s.dispatch.drain()
}

// SetError records err as the latest fetch failure for key.
// Existing data is kept so readers continue to see the last good value.
func (s *Store) SetError(key Key, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	id := key.String()
	e := s.ensureLocked(id, key, entryConfig{})
	s.setErrorLocked(e, err)
	s.notifyLocked(id, e)
	s.mu.Unlock()

	s.dispatch.drain()
}

// Subscription is a scoped registration of interest in a key.
// Release must be called on every exit path; it is idempotent.
type Subscription struct {
	store *Store
	key   Key
	id    string
	seq   uint64
	once  sync.Once
}

// Key returns the subscribed key.
func (sub *Subscription) Key() Key {
	return sub.key
}

// Release drops the subscription. When the last subscriber of an entry
// leaves, the entry's eviction timer starts.
func (sub *Subscription) Release() {
	sub.once.Do(func() {
		sub.store.unsubscribe(sub.id, sub.seq)
	})
}

// Subscribe registers listener for changes to key, creating the entry if
// it does not exist yet.
func (s *Store) Subscribe(key Key, listener Listener, opts ...EntryOption) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e := s.ensureLocked(id, key, applyEntryOptions(opts))
	s.stopEvictLocked(e)

	s.subSeq++
	seq := s.subSeq
	set := s.subs[id]
	if set == nil {
		set = make(map[uint64]Listener)
		s.subs[id] = set
	}
	if listener == nil {
		listener = func(EntryView) {}
	}
	set[seq] = listener

	return &Subscription{store: s, key: key, id: id, seq: seq}
}

func (s *Store) unsubscribe(id string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.subs[id]
	if set == nil {
		return
	}
	delete(set, seq)
	if len(set) > 0 {
		return
	}
	delete(s.subs, id)
	if e, ok := s.entries[id]; ok && !s.closed {
		s.scheduleEvictLocked(id, e)
	}
}

// Subscribers returns the number of active subscriptions for key.
func (s *Store) Subscribers(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[key.String()])
}

// Invalidate marks every entry matching prefix as stale and notifies its
// subscribers. Entries with subscribers are handed to the refetch hooks.
// It returns the number of matched entries.
func (s *Store) Invalidate(prefix Key) int {
	return s.invalidate(prefix.IsPrefixOf)
}

// InvalidateExact is Invalidate restricted to the entry for key itself.
func (s *Store) InvalidateExact(key Key) bool {
	return s.invalidate(func(k Key) bool { return Equal(key, k) }) > 0
}

func (s *Store) invalidate(match func(Key) bool) int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	var active []Key
	matched := 0
	for _, id := range s.sortedIDsLocked() {
		e := s.entries[id]
		if !match(e.key) {
			continue
		}
		matched++
		e.invalidated = true
		s.notifyLocked(id, e)
		if len(s.subs[id]) > 0 {
			active = append(active, e.key)
		}
	}
	hooks := append([]func(Key){}, s.hooks...)
	s.mu.Unlock()

	s.dispatch.drain()

	for _, k := range active {
		for _, h := range hooks {
			h(k)
		}
	}
	return matched
}

// Remove deletes every entry matching prefix, aborting in-flight fetches.
// Subscribers of a removed entry receive an idle view without data; if they
// stay subscribed, the next write creates a fresh entry for them.
func (s *Store) Remove(prefix Key) []Key {
	s.mu.Lock()
	var removed []Key
	for _, id := range s.sortedIDsLocked() {
		e := s.entries[id]
		if !prefix.IsPrefixOf(e.key) {
			continue
		}
		s.cancelLocked(id, e.key)
		s.stopEvictLocked(e)
		delete(s.entries, id)
		removed = append(removed, e.key)

		s.dispatch.enqueue(notification{
			view:      EntryView{Key: e.key, Status: StatusIdle, Subscribers: len(s.subs[id])},
			listeners: s.listenersLocked(id),
		})
	}
	s.mu.Unlock()

	s.dispatch.drain()

	if len(removed) > 0 {
		s.logger.Debug(context.Background(), "entries removed",
			observe.Field{Key: "prefix", Value: prefix.String()},
			observe.Field{Key: "count", Value: len(removed)},
		)
	}
	return removed
}

// Flight is a registered in-flight fetch.
type Flight struct {
	Key        Key
	Generation uint64
	ctx        context.Context
}

// Context returns the fetch context. It is canceled when the fetch is
// superseded, canceled or the store is closed.
func (f *Flight) Context() context.Context {
	return f.ctx
}

// StartFetch registers a new fetch for key and moves the entry to fetching.
// The returned context is derived from parent. Any fetch already registered
// for the key is canceled and its result will be discarded.
func (s *Store) StartFetch(parent context.Context, key Key, opts ...EntryOption) (*Flight, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := key.String()
	e := s.ensureLocked(id, key, applyEntryOptions(opts))
	gen, ctx := s.registry.Begin(parent, id)
	e.status = StatusFetching
	s.notifyLocked(id, e)
	s.mu.Unlock()

	s.dispatch.drain()
	return &Flight{Key: key, Generation: gen, ctx: ctx}, nil
}

// FinishFetch applies the outcome of f to its entry if f is still the
// current generation. Results of superseded or canceled fetches are dropped
// and ErrSuperseded or ErrFetchCanceled is returned; the entry is untouched.
func (s *Store) FinishFetch(f *Flight, data any, fetchErr error) (EntryView, error) {
	s.mu.Lock()
	id := f.Key.String()
	if !s.registry.Finish(id, f.Generation) {
		s.mu.Unlock()
		s.logger.Debug(f.ctx, "discarded fetch result",
			observe.Field{Key: "key", Value: id},
			observe.Field{Key: "generation", Value: f.Generation},
		)
		if errors.Is(context.Cause(f.ctx), ErrFetchCanceled) {
			return EntryView{}, ErrFetchCanceled
		}
		return EntryView{}, ErrSuperseded
	}

	e, ok := s.entries[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return EntryView{}, ErrFetchCanceled
	}

	if fetchErr != nil {
		s.setErrorLocked(e, fetchErr)
	} else {
		s.writeLocked(e, data)
	}
	s.notifyLocked(id, e)
	v := e.view(len(s.subs[id]))
	s.mu.Unlock()

	s.dispatch.drain()
	return v, fetchErr
}

// Cancel aborts the in-flight fetch for key, if any. The entry returns to
// success when it holds data, to error when the last fetch failed, and to
// idle otherwise.
func (s *Store) Cancel(key Key) bool {
	s.mu.Lock()
	id := key.String()
	if !s.cancelLocked(id, key) {
		s.mu.Unlock()
		return false
	}
	if e, ok := s.entries[id]; ok && e.status == StatusFetching {
		e.status = e.settledStatus()
		s.notifyLocked(id, e)
	}
	s.mu.Unlock()

	s.dispatch.drain()
	return true
}

// InFlight reports whether a fetch for key is registered.
func (s *Store) InFlight(key Key) bool {
	return s.registry.InFlight(key.String())
}

// Keys returns the keys of all entries, ordered by their canonical form.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedIDsLocked()
	keys := make([]Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.entries[id].key)
	}
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats summarizes the store contents.
type Stats struct {
	Entries     int
	Fetching    int
	Errors      int
	Subscribers int
	InFlight    int
	Closed      bool
}

// Stats returns counters describing the current store contents.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Entries: len(s.entries), InFlight: s.registry.Len(), Closed: s.closed}
	for _, e := range s.entries {
		switch e.status {
		case StatusFetching:
			st.Fetching++
		case StatusError:
			st.Errors++
		}
	}
	for _, set := range s.subs {
		st.Subscribers += len(set)
	}
	return st
}

// Close tears the store down: in-flight fetches are canceled, eviction
// timers stopped and all entries dropped. Later writes are ignored.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.registry.CancelAll()
	for _, e := range s.entries {
		s.stopEvictLocked(e)
	}
	s.entries = make(map[string]*entry)
	s.subs = make(map[string]map[uint64]Listener)
	return nil
}

func (s *Store) ensureLocked(id string, key Key, cfg entryConfig) *entry {
	e, ok := s.entries[id]
	if !ok {
		e = &entry{
			key:        key,
			status:     StatusIdle,
			staleAfter: s.policy.StaleAfter,
			evictAfter: s.policy.EvictAfter,
		}
		s.entries[id] = e
		s.logger.Debug(context.Background(), "entry created", observe.Field{Key: "key", Value: id})
	}
	if cfg.hasStaleAfter {
		e.staleAfter = cfg.staleAfter
	}
	rearm := !ok
	if cfg.hasEvictAfter && e.evictAfter != cfg.evictAfter {
		e.evictAfter = cfg.evictAfter
		rearm = true
	}
	if rearm && !s.closed && len(s.subs[id]) == 0 {
		s.scheduleEvictLocked(id, e)
	}
	return e
}

// bumpLocked gives e a version no other entry of this store has held,
// including earlier entries for the same key.
func (s *Store) bumpLocked(e *entry) {
	s.version++
	e.version = s.version
}

func (s *Store) writeLocked(e *entry, data any) {
	e.status = StatusSuccess
	e.data = data
	e.hasData = true
	e.err = nil
	e.errorCount = 0
	e.fetchedAt = s.now()
	e.invalidated = false
	s.bumpLocked(e)
}

func (s *Store) setErrorLocked(e *entry, err error) {
	if err == nil {
		err = errors.New("cache: unknown fetch error")
	}
	e.status = StatusError
	e.err = err
	e.errorAt = s.now()
	e.errorCount++
}

func (s *Store) notifyLocked(id string, e *entry) {
	s.dispatch.enqueue(notification{
		view:      e.view(len(s.subs[id])),
		listeners: s.listenersLocked(id),
	})
}

func (s *Store) listenersLocked(id string) []Listener {
	set := s.subs[id]
	if len(set) == 0 {
		return nil
	}
	seqs := make([]uint64, 0, len(set))
	for seq := range set {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	out := make([]Listener, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, set[seq])
	}
	return out
}

func (s *Store) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) scheduleEvictLocked(id string, e *entry) {
	s.stopEvictLocked(e)
	e.evictSeq++
	seq := e.evictSeq
	e.evictTimer = time.AfterFunc(e.evictAfter, func() {
		s.evict(id, seq)
	})
}

func (s *Store) stopEvictLocked(e *entry) {
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}
	e.evictSeq++
}

func (s *Store) evict(id string, seq uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.evictSeq != seq || len(s.subs[id]) > 0 {
		s.mu.Unlock()
		return
	}
	s.cancelLocked(id, e.key)
	e.evictTimer = nil
	delete(s.entries, id)
	hooks := append([]func(Key){}, s.onEvict...)
	s.mu.Unlock()

	s.logger.Debug(context.Background(), "entry evicted", observe.Field{Key: "key", Value: id})
	for _, h := range hooks {
		h(e.key)
	}
}
