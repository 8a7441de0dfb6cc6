// Package metrics exposes parse-cache metrics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dusk-indust/astcache/internal/optimizer"
)

// Source provides a metrics snapshot. *optimizer.Optimizer satisfies it.
type Source interface {
	Metrics() optimizer.Metrics
}

const namespace = "astcache"

// Collector reads a fresh snapshot from its Source on every scrape, so the
// exported values are always consistent with performance_report.
type Collector struct {
	source Source

	parses      *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	incremental *prometheus.Desc
	evictions   *prometheus.Desc
	hitRate     *prometheus.Desc
	parseTime   *prometheus.Desc
	memory      *prometheus.Desc
	size        *prometheus.Desc
	maxSize     *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector over source.
func NewCollector(source Source) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		source:      source,
		parses:      desc("parses_total", "Parse results stored in the cache."),
		hits:        desc("cache_hits_total", "Cache lookups that returned a stored result."),
		misses:      desc("cache_misses_total", "Cache lookups that found nothing usable."),
		incremental: desc("incremental_updates_total", "Parses served by the incremental path."),
		evictions:   desc("evictions_total", "Entries removed by capacity or memory reclaim."),
		hitRate:     desc("cache_hit_rate_percent", "Cache hit rate in percent."),
		parseTime:   desc("average_parse_time_ms", "Moving average of parse time in milliseconds."),
		memory:      desc("estimated_memory_mb", "Estimated memory held by cached results."),
		size:        desc("cache_entries", "Entries currently cached."),
		maxSize:     desc("cache_max_entries", "Configured cache capacity."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.parses, c.hits, c.misses, c.incremental, c.evictions,
		c.hitRate, c.parseTime, c.memory, c.size, c.maxSize,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.source.Metrics()

	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.parses, m.TotalParses)
	counter(c.hits, m.CacheHits)
	counter(c.misses, m.CacheMisses)
	counter(c.incremental, m.IncrementalUpdates)
	counter(c.evictions, m.Evictions)
	gauge(c.hitRate, m.CacheHitRate)
	gauge(c.parseTime, m.AverageParseTimeMS)
	gauge(c.memory, m.EstimatedMemoryMB)
	gauge(c.size, float64(m.CurrentCacheSize))
	gauge(c.maxSize, float64(m.ConfiguredMaxSize))
}

// NewRegistry returns a registry holding a Collector over source plus the
// standard Go runtime and process collectors.
func NewRegistry(source Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg
}
