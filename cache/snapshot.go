package cache

import (
	"sync"
	"time"
)

// Snapshot is a single-use capture of the entries for a set of keys.
// It is taken immediately before a speculative write and either restored
// on failure or discarded once the write is confirmed.
type Snapshot struct {
	mu        sync.Mutex
	saved     []savedEntry
	discarded bool
}

type savedEntry struct {
	key        Key
	present    bool
	status     Status
	data       any
	hasData    bool
	err        error
	fetchedAt  time.Time
	errorAt    time.Time
	errorCount int
	invalid    bool
}

// Keys returns the keys covered by the snapshot.
func (sn *Snapshot) Keys() []Key {
	keys := make([]Key, 0, len(sn.saved))
	for _, se := range sn.saved {
		keys = append(keys, se.key)
	}
	return keys
}

// Discard releases the snapshot. Later Restore calls fail.
func (sn *Snapshot) Discard() {
	sn.mu.Lock()
	sn.discarded = true
	sn.saved = nil
	sn.mu.Unlock()
}

// Capture records the current state of the entries for keys.
// Duplicate keys are captured once.
func (s *Store) Capture(keys ...Key) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn := &Snapshot{}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		id := k.String()
		if seen[id] {
			continue
		}
		seen[id] = true

		e, ok := s.entries[id]
		if !ok {
			sn.saved = append(sn.saved, savedEntry{key: k})
			continue
		}
		status := e.status
		if status == StatusFetching {
			status = e.settledStatus()
		}
		sn.saved = append(sn.saved, savedEntry{
			key:        e.key,
			present:    true,
			status:     status,
			data:       e.data,
			hasData:    e.hasData,
			err:        e.err,
			fetchedAt:  e.fetchedAt,
			errorAt:    e.errorAt,
			errorCount: e.errorCount,
			invalid:    e.invalidated,
		})
	}
	return sn
}

// Restore puts every captured entry back to its captured state and
// discards the snapshot. Keys that had no entry at capture time lose the
// data written since; their entry is deleted when nobody observes it.
// Only the captured keys are touched.
func (s *Store) Restore(sn *Snapshot) error {
	sn.mu.Lock()
	if sn.discarded {
		sn.mu.Unlock()
		return ErrSnapshotDiscarded
	}
	saved := sn.saved
	sn.discarded = true
	sn.saved = nil
	sn.mu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	for _, se := range saved {
		id := se.key.String()
		if !se.present {
			e, ok := s.entries[id]
			if !ok {
				continue
			}
			if len(s.subs[id]) == 0 {
				s.stopEvictLocked(e)
				delete(s.entries, id)
				continue
			}
			e.status = StatusIdle
			e.data = nil
			e.hasData = false
			e.err = nil
			e.fetchedAt = time.Time{}
			e.errorAt = time.Time{}
			e.errorCount = 0
			e.invalidated = false
			s.bumpLocked(e)
			s.notifyLocked(id, e)
			continue
		}

		e := s.ensureLocked(id, se.key, entryConfig{})
		if !s.registry.InFlight(id) {
			e.status = se.status
		}
		e.data = se.data
		e.hasData = se.hasData
		e.err = se.err
		e.fetchedAt = se.fetchedAt
		e.errorAt = se.errorAt
		e.errorCount = se.errorCount
		e.invalidated = se.invalid
		s.bumpLocked(e)
		s.notifyLocked(id, e)
	}
	s.mu.Unlock()

	s.dispatch.drain()
	return nil
}
