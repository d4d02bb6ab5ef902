package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// segment is a project-partitioned map with its own lock and counters.
type segment[V any] struct {
	mu      sync.RWMutex
	entries map[string]map[string]entry[V]
	size    int
	limit   int
	ttl     time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newSegment[V any](limit int, ttl time.Duration) *segment[V] {
	return &segment[V]{
		entries: make(map[string]map[string]entry[V]),
		limit:   limit,
		ttl:     ttl,
	}
}

func (s *segment[V]) get(project, key string, now time.Time) (V, bool) {
	var zero V
	s.mu.RLock()
	e, ok := s.entries[project][key]
	s.mu.RUnlock()
	if !ok {
		s.misses.Add(1)
		return zero, false
	}
	if e.expired(now) {
		s.mu.Lock()
		if cur, still := s.entries[project][key]; still && cur.expired(now) {
			s.deleteLocked(project, key)
			s.evictions.Add(1)
		}
		s.mu.Unlock()
		s.misses.Add(1)
		return zero, false
	}
	s.hits.Add(1)
	return e.value, true
}

func (s *segment[V]) put(project, key string, value V, now time.Time) {
	e := entry[V]{value: value}
	if s.ttl > 0 {
		e.expires = now.Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.entries[project]
	if !ok {
		bucket = make(map[string]entry[V])
		s.entries[project] = bucket
	}
	if _, exists := bucket[key]; !exists {
		if s.limit > 0 && s.size >= s.limit {
			s.evictOneLocked(now)
		}
		s.size++
	}
	bucket[key] = e
}

// evictOneLocked drops an expired entry when one exists, otherwise an
// arbitrary one.
func (s *segment[V]) evictOneLocked(now time.Time) {
	var victimProject, victimKey string
	found := false
	for project, bucket := range s.entries {
		for key, e := range bucket {
			if !found {
				victimProject, victimKey, found = project, key, true
			}
			if e.expired(now) {
				victimProject, victimKey = project, key
				s.deleteLocked(victimProject, victimKey)
				s.evictions.Add(1)
				return
			}
		}
	}
	if found {
		s.deleteLocked(victimProject, victimKey)
		s.evictions.Add(1)
	}
}

func (s *segment[V]) deleteLocked(project, key string) {
	bucket, ok := s.entries[project]
	if !ok {
		return
	}
	if _, ok := bucket[key]; !ok {
		return
	}
	delete(bucket, key)
	s.size--
	if len(bucket) == 0 {
		delete(s.entries, project)
	}
}

func (s *segment[V]) dropProject(project string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries[project])
	s.size -= n
	delete(s.entries, project)
	return n
}

func (s *segment[V]) dropPrefix(project, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.entries[project] {
		if strings.HasPrefix(key, prefix) {
			s.deleteLocked(project, key)
			n++
		}
	}
	return n
}

func (s *segment[V]) clear() {
	s.mu.Lock()
	s.entries = make(map[string]map[string]entry[V])
	s.size = 0
	s.mu.Unlock()
}

func (s *segment[V]) stats() SegmentStats {
	s.mu.RLock()
	size := s.size
	s.mu.RUnlock()
	return SegmentStats{
		Entries:   size,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}
