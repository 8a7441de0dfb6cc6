package optimizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/dusk-indust/astcache/internal/parse"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome for one file of a batch. Result is never nil:
// failures carry a synthetic unsuccessful Result whose Error holds the
// failure text, and Err classifies it (ErrRead, ErrParse, ErrParseTimeout,
// ErrCanceled).
type BatchResult struct {
	Path   string        `json:"path"`
	Result *parse.Result `json:"result"`
	Err    error         `json:"-"`
}

// Failed reports whether this file could not be parsed.
func (r BatchResult) Failed() bool {
	return r.Err != nil
}

// ParseBatch parses paths in consecutive batches of Config.BatchSize, each
// with at most Config.Workers files in flight. It always returns exactly one
// result per input path. Within a batch results appear in completion order;
// batches themselves run strictly one after another.
func (o *Optimizer) ParseBatch(ctx context.Context, paths []string, fn parse.Func) []BatchResult {
	results := make([]BatchResult, 0, len(paths))
	for start, batch := 0, 0; start < len(paths); start, batch = start+o.cfg.BatchSize, batch+1 {
		end := min(start+o.cfg.BatchSize, len(paths))
		results = append(results, o.runBatch(ctx, batch, paths[start:end], fn)...)
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	o.logger.Debug("batch parse finished", "files", len(paths), "failed", failed)
	return results
}

// runBatch is a bounded worker pool over one batch. Workers never return an
// error to the group, so one file's failure cannot cancel its siblings.
func (o *Optimizer) runBatch(ctx context.Context, batch int, paths []string, fn parse.Func) []BatchResult {
	var (
		mu  sync.Mutex
		out = make([]BatchResult, 0, len(paths))
	)

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)

	for _, path := range paths {
		o.emit(ProgressEvent{Batch: batch, Path: path, Status: ProgressPending})

		g.Go(func() error {
			o.emit(ProgressEvent{Batch: batch, Path: path, Status: ProgressWorking})

			r := o.parseFile(ctx, path, fn)
			if r.Failed() {
				o.emit(ProgressEvent{Batch: batch, Path: path, Status: ProgressFailed, Message: r.Err.Error()})
			} else {
				o.emit(ProgressEvent{Batch: batch, Path: path, Status: ProgressComplete})
			}

			mu.Lock()
			out = append(out, r)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return out
}

// parseFile reads and parses one file, folding every failure into the
// returned BatchResult.
func (o *Optimizer) parseFile(ctx context.Context, path string, fn parse.Func) BatchResult {
	if err := ctx.Err(); err != nil {
		return o.failed(path, "", fmt.Errorf("%w: %s: %w", ErrCanceled, path, err))
	}

	content, err := o.ReadFile(path)
	if err != nil {
		return o.failed(path, "", err)
	}

	res, err := o.ParseOne(ctx, path, content, fn)
	if err != nil {
		return o.failed(path, content, err)
	}
	if res == nil {
		return o.failed(path, content, fmt.Errorf("%w: %s: no result", ErrParse, path))
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "parse function reported failure"
		}
		return BatchResult{Path: path, Result: res, Err: fmt.Errorf("%w: %s: %s", ErrParse, path, msg)}
	}
	return BatchResult{Path: path, Result: res}
}

func (o *Optimizer) failed(path, content string, err error) BatchResult {
	o.logger.Debug("file failed", "path", path, "err", err)
	return BatchResult{
		Path:   path,
		Result: parse.Failed(parse.DetectLanguage(path, content), err.Error()),
		Err:    err,
	}
}
