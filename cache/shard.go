package cache

import (
	"sync"

	"github.com/IvanBrykalov/rescache/internal/util"
)

// shard is an independent partition of the cache with its own lock and maps.
// Shared entries and instance entries live in separate maps. Ids are routed
// by shape: anything ParseInstanceID accepts is an instance, and Acquire
// rejects such keys, so the two namespaces are disjoint.
type shard[V any] struct {
	// ---- guarded by mu ----
	mu     sync.Mutex
	m      map[string]*entry[V] // shared entries by key
	inst   map[string]*entry[V] // instance entries by InstanceID
	closed bool                 // set by the final flush; no inserts after it

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
}

func newShard[V any]() *shard[V] {
	return &shard[V]{
		m:    make(map[string]*entry[V]),
		inst: make(map[string]*entry[V]),
	}
}

// table returns the map id belongs to.
func (s *shard[V]) table(id string) map[string]*entry[V] {
	if isInstanceID(id) {
		return s.inst
	}
	return s.m
}

// acquire looks up key and either claims a reference on a Ready entry
// (hit == true) or attaches the caller as a waiter, creating a Pending entry
// when none exists (leader == true). It returns ErrClosed once the shard
// was closed.
func (s *shard[V]) acquire(key string) (e *entry[V], hit, leader bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, false, ErrClosed
	}
	e, ok := s.m[key]
	if ok && e.state == stateReady {
		e.refs++
		s.hits.Add(1)
		return e, true, false, nil
	}
	s.misses.Add(1)
	if !ok {
		e = newPending[V](key)
		s.m[key] = e
		leader = true
	}
	e.waiters++
	return e, false, leader, nil
}

// abandon detaches one waiter from e. It reports false when e resolved
// in the meantime; the caller is then already accounted for and must take
// the result.
func (s *shard[V]) abandon(e *entry[V]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.state != statePending {
		return false
	}
	e.waiters--
	return true
}

// resolve publishes a load result. Every attached waiter receives one
// reference on success. It returns abandoned == true when the entry was
// detached by a flush: the value must then be released by the caller, which
// closes e.done afterwards so waiters wake only once the release happened.
func (s *shard[V]) resolve(e *entry[V], v V, err error) (abandoned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil && e.detached {
		e.state = stateFailed
		e.err = &LoadError{Key: e.id, Kind: ErrFlushed}
		e.waiters = 0
		return true
	}
	defer close(e.done)
	if err != nil {
		e.state = stateFailed
		e.err = err
		e.waiters = 0
		if !e.detached && s.m[e.id] == e {
			delete(s.m, e.id)
		}
		return false
	}
	// one reference per caller still attached, the leader included
	e.refs, e.waiters = e.waiters, 0
	e.state = stateReady
	e.val = v
	return false
}

// release drops one reference. It returns the entry when the count reached
// zero and the entry was removed; found reports whether a reference was held.
func (s *shard[V]) release(id string) (victim *entry[V], found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.table(id)
	e, ok := m[id]
	if !ok || e.state != stateReady || e.refs == 0 {
		return nil, false
	}
	e.refs--
	if e.refs > 0 {
		return nil, true
	}
	delete(m, id)
	return e, true
}

// insertInstance tracks a freshly spawned instance. It reports false when
// the shard is closed; the caller then still owns the value.
func (s *shard[V]) insertInstance(e *entry[V]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.inst[e.id] = e
	return true
}

// flush empties the shard. Ready entries are returned for release; Pending
// entries are marked detached so their eventual result is released on arrival.
// With closeShard set, later acquire and insertInstance calls are refused.
func (s *shard[V]) flush(closeShard bool) []*entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if closeShard {
		s.closed = true
	}
	out := make([]*entry[V], 0, len(s.m)+len(s.inst))
	for id, e := range s.m {
		delete(s.m, id)
		if e.state == statePending {
			e.detached = true
			continue
		}
		out = append(out, e)
	}
	for id, e := range s.inst {
		delete(s.inst, id)
		out = append(out, e)
	}
	return out
}

// prune removes Ready shared entries nobody holds.
func (s *shard[V]) prune() []*entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entry[V]
	for id, e := range s.m {
		if e.state == stateReady && e.refs == 0 {
			delete(s.m, id)
			out = append(out, e)
		}
	}
	return out
}

// lookup returns a snapshot of (state, refs) for id.
func (s *shard[V]) lookup(id string) (state entryState, refs int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.table(id)[id]
	if !ok {
		return 0, 0, false
	}
	return e.state, e.refs, true
}

// countBase returns how many entries in this shard belong to base key.
func (s *shard[V]) countBase(base string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	if _, ok := s.m[base]; ok {
		n++
	}
	for _, e := range s.inst {
		if e.base == base {
			n++
		}
	}
	return n
}

func (s *shard[V]) keys(dst []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.m {
		dst = append(dst, id)
	}
	for id := range s.inst {
		dst = append(dst, id)
	}
	return dst
}

// Len returns the number of tracked entries in this shard.
func (s *shard[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m) + len(s.inst)
}
