package store

import (
	"strconv"
	"time"
)

// Get returns the value at key if present and not expired.
func (s *Store) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

// GetLocked is Get's body for a caller that already holds s.mu: EXEC
// replays its queued ops under one critical section rather than one
// lock acquisition per op. Callers must bracket use with Lock/Unlock.
func (s *Store) GetLocked(key string) ([]byte, bool, error) {
	return s.getLocked(key)
}

func (s *Store) getLocked(key string) ([]byte, bool, error) {
	switch s.kindOf(key) {
	case KindNone:
		return nil, false, nil
	case KindString:
	default:
		return nil, false, ErrWrongType
	}
	e := s.strings[key]
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true, nil
}

func (s *Store) nonStringKindLocked(key string) (Kind, bool) {
	if _, ok := s.streams[key]; ok {
		return KindStream, true
	}
	if _, ok := s.lists[key]; ok {
		return KindList, true
	}
	if _, ok := s.zsets[key]; ok {
		return KindZSet, true
	}
	return KindNone, false
}

// Set stores value at key, replacing whatever was there. ttl of zero
// means no expiration. If the previous entry carried an
// expiration it is removed from the index first; if the new ttl produces
// an earlier deadline than the current earliest, the reaper is woken.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	err, wake := s.setLocked(key, value, ttl)
	s.mu.Unlock()

	if wake {
		s.notifyReaper()
	}
	return err
}

// SetLocked is Set's body for a caller that already holds s.mu (see
// GetLocked). Callers must bracket use with Lock/Unlock.
func (s *Store) SetLocked(key string, value []byte, ttl time.Duration) error {
	err, wake := s.setLocked(key, value, ttl)
	if wake {
		s.notifyReaper()
	}
	return err
}

func (s *Store) setLocked(key string, value []byte, ttl time.Duration) (error, bool) {
	if kind, wrong := s.nonStringKindLocked(key); wrong {
		_ = kind
		return ErrWrongType, false
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if prev, ok := s.strings[key]; ok && !prev.expiresAt.IsZero() {
		s.removeExpiration(prev.expiresAt, key)
	}

	data := make([]byte, len(value))
	copy(data, value)
	s.strings[key] = &stringEntry{data: data, expiresAt: expiresAt}

	wake := false
	if !expiresAt.IsZero() {
		wake = s.insertExpiration(expiresAt, key)
	}
	return nil, wake
}

// Incr parses the existing value as a signed integer, increments it by
// one, stores the decimal representation back and returns the new
// value. A missing key is treated as 0.
func (s *Store) Incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrLocked(key)
}

// IncrLocked is Incr's body for a caller that already holds s.mu (see
// GetLocked). Callers must bracket use with Lock/Unlock.
func (s *Store) IncrLocked(key string) (int64, error) {
	return s.incrLocked(key)
}

func (s *Store) incrLocked(key string) (int64, error) {
	if _, wrong := s.nonStringKindLocked(key); wrong {
		return 0, ErrWrongType
	}

	var n int64
	if e, ok := s.strings[key]; ok && !s.expiredLocked(e) {
		parsed, err := strconv.ParseInt(string(e.data), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		n = parsed
	}

	n++
	existing, had := s.strings[key]
	var expiresAt time.Time
	if had && !s.expiredLocked(existing) {
		expiresAt = existing.expiresAt
	}
	s.strings[key] = &stringEntry{data: []byte(strconv.FormatInt(n, 10)), expiresAt: expiresAt}
	return n, nil
}
