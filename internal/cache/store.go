// Package cache implements the content-addressed parse cache: a bounded table
// keyed by (path, content fingerprint) with strict LRU eviction, lazy TTL
// expiry and running performance counters.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dusk-indust/astcache/internal/parse"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// ErrInvalidConfig is returned by New for non-positive size or TTL.
var ErrInvalidConfig = errors.New("cache: invalid configuration")

// emaAlpha is the smoothing factor of the average parse time.
const emaAlpha = 0.1

// Key identifies one cache slot.
type Key struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// Entry is a cached parse payload plus its bookkeeping.
type Entry struct {
	Path        string        `json:"path"`
	Fingerprint string        `json:"fingerprint"`
	Result      *parse.Result `json:"result"`
	CreatedAt   time.Time     `json:"createdAt"`
	ParseTime   time.Duration `json:"parseTime"`
	AccessCount int64         `json:"accessCount"`
	LastAccess  time.Time     `json:"lastAccess"`

	// SizeBytes is the serialized size estimate of Result.
	SizeBytes int64 `json:"-"`
}

// Counters are the raw, monotonically accumulating statistics. Everything
// else in Metrics is derived from these and the table.
type Counters struct {
	TotalParses        int64   `json:"totalParses"`
	CacheHits          int64   `json:"cacheHits"`
	CacheMisses        int64   `json:"cacheMisses"`
	IncrementalUpdates int64   `json:"incrementalUpdates"`
	Evictions          int64   `json:"evictions"`
	AverageParseTimeMS float64 `json:"averageParseTimeMs"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is safe for concurrent use. Every operation, including LRU
// promotion on reads, runs under a single mutex.
type Store struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[Key, *Entry]
	byPath   map[string]map[string]struct{} // path -> fingerprints
	counters Counters

	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// New creates a Store holding at most maxSize entries, each considered
// absent once older than ttl.
func New(maxSize int, ttl time.Duration, opts ...Option) (*Store, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidConfig, ttl)
	}

	s := &Store{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	lru, byPath, err := s.newTable()
	if err != nil {
		return nil, err
	}
	s.lru, s.byPath = lru, byPath
	return s, nil
}

// newTable builds an empty LRU whose eviction callback keeps the returned
// per-path index in sync.
func (s *Store) newTable() (*simplelru.LRU[Key, *Entry], map[string]map[string]struct{}, error) {
	byPath := make(map[string]map[string]struct{})
	lru, err := simplelru.NewLRU[Key, *Entry](s.maxSize, func(k Key, _ *Entry) {
		fps := byPath[k.Path]
		delete(fps, k.Fingerprint)
		if len(fps) == 0 {
			delete(byPath, k.Path)
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("new lru: %w", err)
	}
	return lru, byPath, nil
}

// MaxSize returns the configured capacity.
func (s *Store) MaxSize() int { return s.maxSize }

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Get returns the cached result for (path, fingerprint). A lookup that finds
// nothing also drops entries cached for the same path under a different
// fingerprint, since the content they describe is gone.
func (s *Store) Get(path, fingerprint string) (*parse.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{Path: path, Fingerprint: fingerprint}
	entry, ok := s.lru.Peek(key)
	if !ok {
		s.dropOtherFingerprints(path, fingerprint)
		s.counters.CacheMisses++
		return nil, false
	}

	now := s.now()
	if s.expired(entry, now) {
		s.lru.Remove(key)
		s.counters.CacheMisses++
		return nil, false
	}

	s.lru.Get(key) // promote to most-recently-used
	entry.AccessCount++
	entry.LastAccess = now
	s.counters.CacheHits++
	return entry.Result, true
}

// Contains reports whether a live entry exists for (path, fingerprint)
// without touching recency or counters.
func (s *Store) Contains(path, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lru.Peek(Key{Path: path, Fingerprint: fingerprint})
	return ok && !s.expired(entry, s.now())
}

// Put stores result under (path, fingerprint) as the most-recently-used
// entry, evicting the least-recently-used one when over capacity.
func (s *Store) Put(path, fingerprint string, result *parse.Result, parseTime time.Duration) {
	now := s.now()
	entry := &Entry{
		Path:        path,
		Fingerprint: fingerprint,
		Result:      result,
		CreatedAt:   now,
		ParseTime:   parseTime,
		AccessCount: 1,
		LastAccess:  now,
		SizeBytes:   estimateSize(result),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insert(entry)
	s.counters.TotalParses++
	s.observeParseTime(parseTime)
}

func (s *Store) insert(entry *Entry) {
	key := Key{Path: entry.Path, Fingerprint: entry.Fingerprint}
	if s.lru.Add(key, entry) {
		s.counters.Evictions++
	}
	fps, ok := s.byPath[entry.Path]
	if !ok {
		fps = make(map[string]struct{})
		s.byPath[entry.Path] = fps
	}
	fps[entry.Fingerprint] = struct{}{}
}

// Invalidate removes every entry for path regardless of fingerprint and
// returns how many were removed.
func (s *Store) Invalidate(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropOtherFingerprints(path, "")
}

// Clear empties the table. Counters are left alone; see ResetMetrics.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
}

// ResetMetrics zeroes every counter.
func (s *Store) ResetMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = Counters{}
}

// RecordIncremental counts one pass through the incremental update path.
func (s *Store) RecordIncremental() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.IncrementalUpdates++
}

// Len returns the number of entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// MemoryBytes sums the size estimates of all stored payloads.
func (s *Store) MemoryBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryBytes()
}

func (s *Store) memoryBytes() int64 {
	var total int64
	for _, e := range s.lru.Values() {
		total += e.SizeBytes
	}
	return total
}

// RemoveOlderThan drops entries created more than age ago and returns the
// number removed.
func (s *Store) RemoveOlderThan(age time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range s.lru.Keys() {
		entry, ok := s.lru.Peek(key)
		if ok && now.Sub(entry.CreatedAt) > age {
			s.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// ShrinkTo evicts least-recently-used entries until at most n remain and
// returns the number evicted.
func (s *Store) ShrinkTo(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 {
		n = 0
	}
	evicted := 0
	for s.lru.Len() > n {
		if _, _, ok := s.lru.RemoveOldest(); !ok {
			break
		}
		evicted++
	}
	s.counters.Evictions += int64(evicted)
	return evicted
}

// dropOtherFingerprints removes entries for path whose fingerprint differs
// from keep. An empty keep removes them all. Caller holds s.mu.
func (s *Store) dropOtherFingerprints(path, keep string) int {
	fps := s.byPath[path]
	if len(fps) == 0 {
		return 0
	}
	stale := make([]string, 0, len(fps))
	for fp := range fps {
		if fp != keep {
			stale = append(stale, fp)
		}
	}
	for _, fp := range stale {
		s.lru.Remove(Key{Path: path, Fingerprint: fp})
	}
	return len(stale)
}

func (s *Store) expired(e *Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) > s.ttl
}

// observeParseTime folds d into the exponential moving average. Caller
// holds s.mu and has already counted the parse.
func (s *Store) observeParseTime(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if s.counters.TotalParses == 1 {
		s.counters.AverageParseTimeMS = ms
		return
	}
	s.counters.AverageParseTimeMS = emaAlpha*ms + (1-emaAlpha)*s.counters.AverageParseTimeMS
}

// estimateSize approximates the in-memory footprint of a payload by its
// JSON encoding.
func estimateSize(r *parse.Result) int64 {
	if r == nil {
		return 0
	}
	data, err := json.Marshal(r)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
