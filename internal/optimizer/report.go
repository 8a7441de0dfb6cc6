package optimizer

import "github.com/dusk-indust/astcache/internal/cache"

// Recommendation thresholds.
const (
	lowHitRate          = 50.0
	moderateHitRate     = 75.0
	slowParseMS         = 1000.0
	minIncrementalRatio = 0.3
)

// Metrics is the read-only metrics snapshot.
type Metrics struct {
	TotalParses          int64   `json:"total_parses"`
	CacheHits            int64   `json:"cache_hits"`
	CacheMisses          int64   `json:"cache_misses"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
	AverageParseTimeMS   float64 `json:"average_parse_time"`
	EstimatedMemoryMB    float64 `json:"estimated_memory_mb"`
	IncrementalUpdates   int64   `json:"incremental_updates"`
	Evictions            int64   `json:"evictions"`
	CurrentCacheSize     int     `json:"current_cache_size"`
	ConfiguredMaxSize    int     `json:"configured_max_size"`
	ConfiguredTTLSeconds float64 `json:"configured_ttl_seconds"`
	ConfiguredWorkers    int     `json:"configured_worker_count"`
	ConfiguredBatchSize  int     `json:"configured_batch_size"`
}

// Report is Metrics plus tracked-file count and tuning advice.
type Report struct {
	Metrics
	TrackedFiles    int      `json:"tracked_files"`
	Recommendations []string `json:"recommendations"`
}

// Metrics returns the current metrics snapshot.
func (o *Optimizer) Metrics() Metrics {
	m := o.store.Metrics()
	return metricsFrom(m, o.cfg)
}

func metricsFrom(m cache.Metrics, cfg Config) Metrics {
	return Metrics{
		TotalParses:          m.TotalParses,
		CacheHits:            m.CacheHits,
		CacheMisses:          m.CacheMisses,
		CacheHitRate:         m.HitRate,
		AverageParseTimeMS:   m.AverageParseTimeMS,
		EstimatedMemoryMB:    m.MemoryMB,
		IncrementalUpdates:   m.IncrementalUpdates,
		Evictions:            m.Evictions,
		CurrentCacheSize:     m.Size,
		ConfiguredMaxSize:    m.MaxSize,
		ConfiguredTTLSeconds: m.TTL.Seconds(),
		ConfiguredWorkers:    cfg.Workers,
		ConfiguredBatchSize:  cfg.BatchSize,
	}
}

// Report returns the metrics snapshot with recommendations.
func (o *Optimizer) Report() Report {
	m := o.Metrics()
	return Report{
		Metrics:         m,
		TrackedFiles:    o.inc.Len(),
		Recommendations: recommend(m, o.cfg.HardLimitMB),
	}
}

func recommend(m Metrics, hardLimitMB float64) []string {
	recs := []string{}

	if m.CacheHits+m.CacheMisses > 0 {
		switch {
		case m.CacheHitRate < lowHitRate:
			recs = append(recs, "Low cache hit rate. Consider increasing cache size or TTL.")
		case m.CacheHitRate < moderateHitRate:
			recs = append(recs, "Moderate cache hit rate. Review cache invalidation strategy.")
		}
	}
	if m.EstimatedMemoryMB > hardLimitMB {
		recs = append(recs, "High memory usage. Consider reducing cache size or running memory reclamation.")
	}
	if m.AverageParseTimeMS > slowParseMS {
		recs = append(recs, "Slow parse times. Consider optimizing parsers or setting a parse timeout.")
	}
	if float64(m.IncrementalUpdates) < float64(m.TotalParses)*minIncrementalRatio {
		recs = append(recs, "Low incremental update usage. Review file change detection logic.")
	}
	return recs
}
