// Package store implements the shared, thread-safe in-memory data model:
// strings with optional expiration, streams, lists, sorted sets, pub/sub
// channels and the user table, plus the background expiration reaper.
//
// One mutex guards the whole record; it is held only for the duration
// of a single operation and no I/O ever occurs under it. Connections
// hold a *Store by reference; there is exactly one Store per server
// process, shared by every connection handler and the replication
// coordinator.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adred-codev/respd/internal/metrics"
)

// Kind identifies which container type a key currently holds.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindStream
	KindList
	KindZSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindStream:
		return "stream"
	case KindList:
		return "list"
	case KindZSet:
		return "zset"
	default:
		return "none"
	}
}

type stringEntry struct {
	data      []byte
	expiresAt time.Time // zero value means no expiration
}

// expirationKey orders the expiration index by (instant, key) so the
// reaper always pops the earliest-expiring key first regardless of
// insertion order.
type expirationKey struct {
	when time.Time
	key  string
}

// Store is the shared container. Every field below is protected by mu;
// nothing here is read or written without holding it.
type Store struct {
	mu sync.Mutex

	strings     map[string]*stringEntry
	expirations []expirationKey // kept sorted by (when, key); small N in practice

	streams map[string]*stream
	lists   map[string]*list
	zsets   map[string]*zset

	channels map[string]*topic
	users    map[string]string // username -> sha256 hex

	wake chan struct{} // reaper wakeup, buffered(1)
}

// New creates an empty Store and starts its background expiration
// reaper. ctx controls the reaper's lifetime: cancelling ctx stops it.
func New(ctx context.Context) *Store {
	s := &Store{
		strings:  make(map[string]*stringEntry),
		streams:  make(map[string]*stream),
		lists:    make(map[string]*list),
		zsets:    make(map[string]*zset),
		channels: make(map[string]*topic),
		users:    make(map[string]string),
		wake:     make(chan struct{}, 1),
	}
	go s.reapLoop(ctx)
	return s
}

// Lock and Unlock expose the store's mutex directly for the one call
// site that must hold it across several operations: EXEC's batch
// replay, which drains the whole queue atomically. Every other caller
// should use the regular per-operation methods (Get, Set, Incr, ...),
// which lock internally.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

func (s *Store) notifyReaper() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// reapLoop alternates between sleeping until the next expiration and
// waiting on the wake notifier.
func (s *Store) reapLoop(ctx context.Context) {
	for {
		next, ok := s.earliestExpiration()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}

		d := time.Until(next)
		if d <= 0 {
			s.reapExpired()
			continue
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Store) earliestExpiration() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.expirations) == 0 {
		return time.Time{}, false
	}
	return s.expirations[0].when, true
}

func (s *Store) reapExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	i := 0
	for i < len(s.expirations) && !s.expirations[i].when.After(now) {
		delete(s.strings, s.expirations[i].key)
		i++
	}
	s.expirations = s.expirations[i:]
	if i > 0 {
		metrics.ReaperExpiredTotal.Add(float64(i))
	}
}

// insertExpiration inserts (when, key) into the sorted expirations slice
// and reports whether it became the new earliest entry (the reaper needs
// waking in that case).
func (s *Store) insertExpiration(when time.Time, key string) bool {
	idx := sort.Search(len(s.expirations), func(i int) bool {
		ek := s.expirations[i]
		if ek.when.Equal(when) {
			return ek.key >= key
		}
		return ek.when.After(when)
	})
	s.expirations = append(s.expirations, expirationKey{})
	copy(s.expirations[idx+1:], s.expirations[idx:])
	s.expirations[idx] = expirationKey{when: when, key: key}
	return idx == 0
}

func (s *Store) removeExpiration(when time.Time, key string) {
	for i, ek := range s.expirations {
		if ek.when.Equal(when) && ek.key == key {
			s.expirations = append(s.expirations[:i], s.expirations[i+1:]...)
			return
		}
	}
}

// kindOf reports which kind of value, if any, currently lives at key.
// Callers hold s.mu.
func (s *Store) kindOf(key string) Kind {
	if e, ok := s.strings[key]; ok {
		if s.expiredLocked(e) {
			return KindNone
		}
		return KindString
	}
	if _, ok := s.streams[key]; ok {
		return KindStream
	}
	if _, ok := s.lists[key]; ok {
		return KindList
	}
	if _, ok := s.zsets[key]; ok {
		return KindZSet
	}
	return KindNone
}

func (s *Store) expiredLocked(e *stringEntry) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(time.Now())
}

// Type reports the kind held at key, for the TYPE command.
func (s *Store) Type(key string) Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kindOf(key)
}

// Keys matches a restricted glob grammar: "*", "prefix*", or "*suffix"
// only. Any other pattern is matched literally rather than silently
// extended to full globbing.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	now := time.Now()
	match := func(k string) bool {
		switch {
		case pattern == "*":
			return true
		case strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*"):
			return strings.HasPrefix(k, pattern[:len(pattern)-1])
		case strings.HasPrefix(pattern, "*"):
			return strings.HasSuffix(k, pattern[1:])
		default:
			return k == pattern
		}
	}

	for k, e := range s.strings {
		if (e.expiresAt.IsZero() || e.expiresAt.After(now)) && match(k) {
			out = append(out, k)
		}
	}
	for k := range s.streams {
		if match(k) {
			out = append(out, k)
		}
	}
	for k := range s.lists {
		if match(k) {
			out = append(out, k)
		}
	}
	for k := range s.zsets {
		if match(k) {
			out = append(out, k)
		}
	}
	return out
}

// Del removes keys of any kind and returns the number actually removed.
func (s *Store) Del(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, key := range keys {
		switch s.kindOf(key) {
		case KindString:
			e := s.strings[key]
			if !e.expiresAt.IsZero() {
				s.removeExpiration(e.expiresAt, key)
			}
			delete(s.strings, key)
			n++
		case KindStream:
			delete(s.streams, key)
			n++
		case KindList:
			delete(s.lists, key)
			n++
		case KindZSet:
			delete(s.zsets, key)
			n++
		}
	}
	return n
}

// Exists counts how many of keys currently hold a live value.
func (s *Store) Exists(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, key := range keys {
		if s.kindOf(key) != KindNone {
			n++
		}
	}
	return n
}
