package store

import (
	"math"
	"sort"
)

// zmember is one (score, member) pair. Ordering is total: primarily by
// score, ties broken lexicographically by member.
type zmember struct {
	score  float64
	member string
}

// zset stores members sorted by score. NaN is rejected outright at
// ZADD rather than given an arbitrary total order, so the sort never
// has to decide where NaN lands.
type zset struct {
	byMember map[string]float64
	sorted   []zmember // kept sorted by (score, member)
}

func (s *Store) getOrCreateZSet(key string) *zset {
	z, ok := s.zsets[key]
	if !ok {
		z = &zset{byMember: make(map[string]float64)}
		s.zsets[key] = z
	}
	return z
}

func (s *Store) nonZSetWrongKindLocked(key string) bool {
	if _, ok := s.strings[key]; ok {
		return true
	}
	if _, ok := s.streams[key]; ok {
		return true
	}
	if _, ok := s.lists[key]; ok {
		return true
	}
	return false
}

func less(a, b zmember) bool {
	if a.score != b.score {
		// NaN can never reach here (rejected at ZAdd), so a plain
		// float comparison is a safe total order over the remaining
		// values, including signed zero and infinities.
		return a.score < b.score
	}
	return a.member < b.member
}

func (z *zset) search(m zmember) int {
	return sort.Search(len(z.sorted), func(i int) bool { return !less(z.sorted[i], m) })
}

func (z *zset) remove(member string, score float64) {
	m := zmember{score: score, member: member}
	idx := z.search(m)
	if idx < len(z.sorted) && z.sorted[idx].member == member && z.sorted[idx].score == score {
		z.sorted = append(z.sorted[:idx], z.sorted[idx+1:]...)
	}
}

func (z *zset) insert(member string, score float64) {
	m := zmember{score: score, member: member}
	idx := z.search(m)
	z.sorted = append(z.sorted, zmember{})
	copy(z.sorted[idx+1:], z.sorted[idx:])
	z.sorted[idx] = m
}

// ZAdd inserts or updates member's score, returning the number of new
// members added (existing members that only changed score are not
// counted, matching ZADD's default reply semantics). NaN scores are
// rejected.
func (s *Store) ZAdd(key string, scores map[string]float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nonZSetWrongKindLocked(key) {
		return 0, ErrWrongType
	}
	for _, score := range scores {
		if math.IsNaN(score) {
			return 0, ErrNotInteger
		}
	}

	z := s.getOrCreateZSet(key)
	added := 0
	for member, score := range scores {
		if old, exists := z.byMember[member]; exists {
			if old == score {
				continue
			}
			z.remove(member, old)
		} else {
			added++
		}
		z.byMember[member] = score
		z.insert(member, score)
	}
	return added, nil
}

// ZScore returns member's score, if present.
func (s *Store) ZScore(key, member string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonZSetWrongKindLocked(key) {
		return 0, false, ErrWrongType
	}
	z, ok := s.zsets[key]
	if !ok {
		return 0, false, nil
	}
	score, ok := z.byMember[member]
	return score, ok, nil
}

// ZCard returns the member count.
func (s *Store) ZCard(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonZSetWrongKindLocked(key) {
		return 0, ErrWrongType
	}
	if z, ok := s.zsets[key]; ok {
		return len(z.sorted), nil
	}
	return 0, nil
}

// ZRank returns member's 0-based rank in ascending score order.
func (s *Store) ZRank(key, member string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonZSetWrongKindLocked(key) {
		return 0, false, ErrWrongType
	}
	z, ok := s.zsets[key]
	if !ok {
		return 0, false, nil
	}
	score, ok := z.byMember[member]
	if !ok {
		return 0, false, nil
	}
	idx := z.search(zmember{score: score, member: member})
	return idx, true, nil
}

// ZRange returns members in [start, end] ascending rank order, with the
// same negative-index normalization LRANGE uses.
func (s *Store) ZRange(key string, start, end int) ([]string, []float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonZSetWrongKindLocked(key) {
		return nil, nil, ErrWrongType
	}
	z, ok := s.zsets[key]
	if !ok {
		return nil, nil, nil
	}
	lo, hi, empty := normalizeRange(len(z.sorted), start, end)
	if empty {
		return nil, nil, nil
	}
	members := make([]string, 0, hi-lo+1)
	scores := make([]float64, 0, hi-lo+1)
	for _, m := range z.sorted[lo : hi+1] {
		members = append(members, m.member)
		scores = append(scores, m.score)
	}
	return members, scores, nil
}

// ZRem removes members, returning the number actually removed.
func (s *Store) ZRem(key string, members ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonZSetWrongKindLocked(key) {
		return 0, ErrWrongType
	}
	z, ok := s.zsets[key]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, member := range members {
		if score, exists := z.byMember[member]; exists {
			z.remove(member, score)
			delete(z.byMember, member)
			n++
		}
	}
	return n, nil
}
