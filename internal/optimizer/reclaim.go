package optimizer

import (
	"fmt"
	"math"
)

const bytesPerMB = 1024 * 1024

// ReclaimReport describes what ReclaimMemory did.
type ReclaimReport struct {
	Actions        []string `json:"optimizations"`
	MemoryBeforeMB float64  `json:"memory_before"`
	MemoryAfterMB  float64  `json:"memory_after"`
	CacheSize      int      `json:"cache_size"`
	HitRate        float64  `json:"hit_rate"`
	AgedOut        int      `json:"aged_out"`
	Evicted        int      `json:"evicted"`
}

// ReclaimMemory applies the two-tier reclaim policy. Above SoftLimitMB it
// drops entries older than half the TTL; if the estimate is then still above
// HardLimitMB it evicts least-recently-used entries until the table is
// ShrinkRatio of its size at the start of the call. It only runs when
// called.
func (o *Optimizer) ReclaimMemory() ReclaimReport {
	o.reclaimMu.Lock()
	defer o.reclaimMu.Unlock()

	rep := ReclaimReport{Actions: []string{}}
	before := o.memoryMB()
	preSize := o.store.Len()
	rep.MemoryBeforeMB = before

	if before > o.cfg.SoftLimitMB {
		rep.AgedOut = o.store.RemoveOlderThan(o.store.TTL() / 2)
		rep.Actions = append(rep.Actions, fmt.Sprintf("Removed %d old cache entries", rep.AgedOut))
	}

	if o.memoryMB() > o.cfg.HardLimitMB {
		current := o.store.Len()
		target := int(math.Floor(float64(preSize) * o.cfg.ShrinkRatio))
		rep.Evicted = o.store.ShrinkTo(target)
		rep.Actions = append(rep.Actions, fmt.Sprintf("Reduced cache size from %d to %d", current, o.store.Len()))
	}

	m := o.store.Metrics()
	rep.MemoryAfterMB = m.MemoryMB
	rep.CacheSize = m.Size
	rep.HitRate = m.HitRate

	if len(rep.Actions) > 0 {
		o.logger.Info("memory reclaimed",
			"before_mb", rep.MemoryBeforeMB,
			"after_mb", rep.MemoryAfterMB,
			"aged_out", rep.AgedOut,
			"evicted", rep.Evicted)
	}
	return rep
}

func (o *Optimizer) memoryMB() float64 {
	return float64(o.store.MemoryBytes()) / bytesPerMB
}
