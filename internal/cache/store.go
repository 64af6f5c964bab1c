// Package cache provides a bounded in-memory store with LRU eviction and
// per-entry TTL expiry, used to keep hot dataset pages out of repeated disk
// reads.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/frostyslav/OSGenome/internal/metrics"
	"github.com/frostyslav/OSGenome/internal/snp"
)

// DefaultTTL is the entry lifetime when the caller does not set one.
const DefaultTTL = time.Hour

// Config bounds the store.
type Config struct {
	MaxEntries int
	TTL        time.Duration
	Clock      snp.Clock
}

// Stats is a point-in-time view of cache effectiveness. Counters are
// lifetime totals and survive Clear.
type Stats struct {
	Entries     int     `json:"entries"`
	MaxEntries  int     `json:"max_entries"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

type entry struct {
	key      string
	value    any
	deadline time.Time
}

// Store is a fixed-capacity key/value cache. Expiry is lazy: an entry past
// its deadline is dropped on the next access, not by a background sweeper.
type Store struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
	cfg   Config

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// New builds a Store. MaxEntries must be positive.
func New(cfg Config) (*Store, error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache max entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = snp.SystemClock{}
	}
	return &Store{
		items: make(map[string]*list.Element, cfg.MaxEntries),
		order: list.New(),
		cfg:   cfg,
	}, nil
}

// Get returns the value for key, marking it most recently used. An entry
// past its TTL is removed and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.misses++
		metrics.ObserveCacheRequest(false)
		return nil, false
	}
	ent := el.Value.(*entry)
	if !s.cfg.Clock.Now().Before(ent.deadline) {
		s.removeLocked(el)
		s.expirations++
		s.misses++
		metrics.ObserveCacheRequest(false)
		return nil, false
	}
	s.order.MoveToFront(el)
	s.hits++
	metrics.ObserveCacheRequest(true)
	return ent.value, true
}

// Set stores value under key with a fresh TTL, evicting the least recently
// used entry when the store is full.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.cfg.Clock.Now().Add(s.cfg.TTL)
	if el, ok := s.items[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.deadline = deadline
		s.order.MoveToFront(el)
		return
	}
	if s.order.Len() >= s.cfg.MaxEntries {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest)
			s.evictions++
			metrics.ObserveCacheEviction()
		}
	}
	s.items[key] = s.order.PushFront(&entry{key: key, value: value, deadline: deadline})
}

// Invalidate removes key if present and reports whether it was there.
func (s *Store) Invalidate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeLocked(el)
	return true
}

// Clear drops every entry. Lifetime counters are preserved.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.order.Len()
	s.items = make(map[string]*list.Element, s.cfg.MaxEntries)
	s.order.Init()
	return n
}

// Len reports the number of live entries, counting any not yet lazily
// expired.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Stats snapshots the counters. HitRate is zero when the cache has not been
// read yet.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Entries:     s.order.Len(),
		MaxEntries:  s.cfg.MaxEntries,
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}

func (s *Store) removeLocked(el *list.Element) {
	ent := el.Value.(*entry)
	s.order.Remove(el)
	delete(s.items, ent.key)
}
