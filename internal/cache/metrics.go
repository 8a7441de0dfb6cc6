package cache

import "time"

const bytesPerMB = 1024 * 1024

// Metrics is a point-in-time view of the store's counters and table.
type Metrics struct {
	TotalParses        int64         `json:"total_parses"`
	CacheHits          int64         `json:"cache_hits"`
	CacheMisses        int64         `json:"cache_misses"`
	HitRate            float64       `json:"cache_hit_rate"`
	AverageParseTimeMS float64       `json:"average_parse_time"`
	MemoryMB           float64       `json:"estimated_memory_mb"`
	IncrementalUpdates int64         `json:"incremental_updates"`
	Evictions          int64         `json:"evictions"`
	Size               int           `json:"current_cache_size"`
	MaxSize            int           `json:"configured_max_size"`
	TTL                time.Duration `json:"-"`
}

// HitRate returns hits / (hits + misses) * 100, or 0 with no lookups.
func HitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Metrics snapshots the counters and recomputes every derived value.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters
	return Metrics{
		TotalParses:        c.TotalParses,
		CacheHits:          c.CacheHits,
		CacheMisses:        c.CacheMisses,
		HitRate:            HitRate(c.CacheHits, c.CacheMisses),
		AverageParseTimeMS: c.AverageParseTimeMS,
		MemoryMB:           float64(s.memoryBytes()) / bytesPerMB,
		IncrementalUpdates: c.IncrementalUpdates,
		Evictions:          c.Evictions,
		Size:               s.lru.Len(),
		MaxSize:            s.maxSize,
		TTL:                s.ttl,
	}
}
