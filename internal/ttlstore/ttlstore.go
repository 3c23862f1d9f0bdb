// Package ttlstore implements the keyed store described by the packet stack:
// a capacity-bounded mapping from comparable keys to values, each entry
// timestamped at insert/update, lazily expired by TTL on lookup, with
// oldest-by-timestamp eviction on overflow.
//
// It generalizes the fixed-capacity, linear-scan shape of the teacher's
// lrucache.Cache[K,V] with the TTL field the stack's ARP tables need;
// unlike an LRU it never reorders entries on access, only expires them.
package ttlstore

import "time"

type entry[K comparable, V any] struct {
	key    K
	val    V
	stamp  time.Time
	filled bool
}

// Store is a capacity-bounded TTL cache. The zero value is not usable; use New.
//
// Store takes "now" as an explicit parameter on every operation instead of
// reading a clock internally: the stack is single-threaded and cooperative
// (driven by an externally invoked poll), so one timestamp is captured per
// poll iteration and threaded through every table touched that iteration.
// This also makes expiry deterministic in tests without a fake clock.
type Store[K comparable, V any] struct {
	entries []entry[K, V]
	ttl     time.Duration
	copyFn  func(V) V
}

// New returns a Store with room for capacity entries, each expiring ttl after
// its last Set. copyFn, if non-nil, is applied to the value on every Set; the
// ARP pending table uses it to deep-copy a packet buffer's live payload.
func New[K comparable, V any](capacity int, ttl time.Duration, copyFn func(V) V) *Store[K, V] {
	if capacity <= 0 {
		panic("ttlstore: capacity must be > 0")
	}
	return &Store[K, V]{
		entries: make([]entry[K, V], capacity),
		ttl:     ttl,
		copyFn:  copyFn,
	}
}

// Get looks up key, expiring it first if its TTL has elapsed as of now.
func (s *Store[K, V]) Get(now time.Time, key K) (val V, ok bool) {
	i := s.indexOf(key)
	if i < 0 {
		return val, false
	}
	e := &s.entries[i]
	if now.Sub(e.stamp) > s.ttl {
		*e = entry[K, V]{}
		return val, false
	}
	return e.val, true
}

// Has reports whether key is present and unexpired as of now, without
// returning the value.
func (s *Store[K, V]) Has(now time.Time, key K) bool {
	_, ok := s.Get(now, key)
	return ok
}

// Set inserts or refreshes key with val, stamped at now. If key is absent and
// the store is at capacity, the oldest-by-timestamp entry (expired or not) is
// evicted first.
func (s *Store[K, V]) Set(now time.Time, key K, val V) {
	if s.copyFn != nil {
		val = s.copyFn(val)
	}
	if i := s.indexOf(key); i >= 0 {
		s.entries[i] = entry[K, V]{key: key, val: val, stamp: now, filled: true}
		return
	}
	if i := s.freeSlot(); i >= 0 {
		s.entries[i] = entry[K, V]{key: key, val: val, stamp: now, filled: true}
		return
	}
	i := s.oldest()
	s.entries[i] = entry[K, V]{key: key, val: val, stamp: now, filled: true}
}

// Delete removes key, if present.
func (s *Store[K, V]) Delete(key K) {
	if i := s.indexOf(key); i >= 0 {
		s.entries[i] = entry[K, V]{}
	}
}

// Len returns the number of filled slots, including unexpired and expired
// entries not yet evicted.
func (s *Store[K, V]) Len() int {
	n := 0
	for i := range s.entries {
		if s.entries[i].filled {
			n++
		}
	}
	return n
}

func (s *Store[K, V]) indexOf(key K) int {
	for i := range s.entries {
		if s.entries[i].filled && s.entries[i].key == key {
			return i
		}
	}
	return -1
}

func (s *Store[K, V]) freeSlot() int {
	for i := range s.entries {
		if !s.entries[i].filled {
			return i
		}
	}
	return -1
}

func (s *Store[K, V]) oldest() int {
	oldestIdx := 0
	oldestStamp := s.entries[0].stamp
	for i := 1; i < len(s.entries); i++ {
		if s.entries[i].stamp.Before(oldestStamp) {
			oldestIdx = i
			oldestStamp = s.entries[i].stamp
		}
	}
	return oldestIdx
}
