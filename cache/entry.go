package cache

import (
	"strconv"
	"strings"
)

type entryState uint8

const (
	statePending entryState = iota
	stateReady
	stateFailed
)

// String names the state for logs.
func (s entryState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateReady:
		return "ready"
	default:
		return "failed"
	}
}

// entry tracks one key (or one instance) owned by a shard.
// All fields except done are guarded by the owning shard's mutex.
// val and err are published before done is closed, so a reader that has
// observed <-done may read them without the lock.
type entry[V any] struct {
	id   string
	base string // base key; equals id for shared entries
	inst bool

	state   entryState
	refs    int
	waiters int // callers blocked in Acquire (Pending only)

	val V
	err error

	done chan struct{} // closed once, on Pending -> Ready/Failed

	// detached is set by ReleaseAll on a Pending entry: the entry is no
	// longer in the shard map and its result must be released on arrival.
	detached bool
}

func newPending[V any](key string) *entry[V] {
	return &entry[V]{id: key, base: key, done: make(chan struct{})}
}

func newInstance[V any](id InstanceID, v V) *entry[V] {
	e := &entry[V]{
		id:    string(id),
		base:  id.Base(),
		inst:  true,
		state: stateReady,
		refs:  1,
		val:   v,
		done:  make(chan struct{}),
	}
	close(e.done)
	return e
}

// InstanceID identifies one spawned instance: the base key, a '#', and a
// process-unique decimal sequence number (e.g. "enemy#42").
type InstanceID string

const instanceSep = '#'

func makeInstanceID(key string, seq uint64) InstanceID {
	return InstanceID(key + string(instanceSep) + strconv.FormatUint(seq, 10))
}

// ParseInstanceID splits s into its base key and sequence number.
// ok is false when s does not end in '#' followed by decimal digits.
func ParseInstanceID(s string) (base string, seq uint64, ok bool) {
	i := strings.LastIndexByte(s, instanceSep)
	if i < 0 || i == len(s)-1 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return s[:i], n, true
}

func isInstanceID(s string) bool {
	_, _, ok := ParseInstanceID(s)
	return ok
}

// Base returns the key the instance was spawned from.
func (id InstanceID) Base() string {
	if b, _, ok := ParseInstanceID(string(id)); ok {
		return b
	}
	return string(id)
}

// String returns the id in "key#seq" form.
func (id InstanceID) String() string { return string(id) }
