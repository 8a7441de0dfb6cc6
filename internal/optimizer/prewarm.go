package optimizer

import (
	"cmp"
	"context"
	"slices"

	"github.com/dusk-indust/astcache/internal/parse"
)

// PrewarmReport summarizes one Prewarm call.
type PrewarmReport struct {
	// Considered lists the selected paths, most frequently accessed first.
	Considered []string `json:"considered"`
	Cached     int      `json:"already_cached"`
	Parsed     int      `json:"parsed"`
	// Cold counts files that are not cached but were left alone because no
	// parse function was supplied.
	Cold    int `json:"cold"`
	Skipped int `json:"skipped"`
}

// CountAccesses turns an access log into per-path access counts.
func CountAccesses(paths []string) map[string]int {
	counts := make(map[string]int, len(paths))
	for _, p := range paths {
		counts[p]++
	}
	return counts
}

// Prewarm checks the Config.PrewarmTopN most accessed paths against the
// cache. Unreadable files are skipped. Missing entries are parsed only when
// fn is non-nil. Presence checks do not count as hits or misses.
func (o *Optimizer) Prewarm(ctx context.Context, counts map[string]int, fn parse.Func) PrewarmReport {
	type ranked struct {
		path  string
		count int
	}
	all := make([]ranked, 0, len(counts))
	for p, n := range counts {
		all = append(all, ranked{p, n})
	}
	slices.SortFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})
	if len(all) > o.cfg.PrewarmTopN {
		all = all[:o.cfg.PrewarmTopN]
	}

	var rep PrewarmReport
	for _, r := range all {
		rep.Considered = append(rep.Considered, r.path)

		if ctx.Err() != nil {
			rep.Skipped++
			continue
		}
		content, err := o.ReadFile(r.path)
		if err != nil {
			o.logger.Debug("prewarm skipped unreadable file", "path", r.path, "err", err)
			rep.Skipped++
			continue
		}

		if o.Cached(r.path, content) {
			rep.Cached++
			continue
		}
		if fn == nil {
			rep.Cold++
			continue
		}
		if _, err := o.ParseOne(ctx, r.path, content, fn); err != nil {
			o.logger.Debug("prewarm parse failed", "path", r.path, "err", err)
			rep.Skipped++
			continue
		}
		rep.Parsed++
	}
	return rep
}
