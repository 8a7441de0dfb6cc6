// Package incremental fronts the parse cache with per-file bookkeeping. It
// fingerprints content, serves cache hits and, on a miss, runs the caller's
// parse function and records the outcome.
package incremental

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dusk-indust/astcache/internal/cache"
	"github.com/dusk-indust/astcache/internal/parse"
)

var (
	// ErrParse wraps any error returned by a parse function.
	ErrParse = errors.New("parse failed")

	// ErrParseTimeout is returned when a parse call outlives its bound or
	// its context.
	ErrParseTimeout = errors.New("parse timed out")

	// ErrEmptyPath is returned by Parse for an empty path, which cannot key a
	// cache entry.
	ErrEmptyPath = errors.New("empty path")
)

// FileState is the last known state of one file.
type FileState struct {
	Fingerprint   string    `json:"fingerprint"`
	UpdatedAt     time.Time `json:"updatedAt"`
	FunctionCount int       `json:"functionCount"`
	ClassCount    int       `json:"classCount"`
	ImportCount   int       `json:"importCount"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithParseTimeout bounds every parse call. Zero disables the bound.
func WithParseTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	store   *cache.Store
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	states map[string]FileState
}

// New creates a Coordinator over store.
func New(store *cache.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		now:    time.Now,
		states: make(map[string]FileState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fingerprint returns the hex SHA-256 digest of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Parse returns the structural result for content, from the cache when
// possible.
func (c *Coordinator) Parse(ctx context.Context, path, content string, fn parse.Func) (*parse.Result, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	fp := Fingerprint(content)

	if res, ok := c.store.Get(path, fp); ok && res != nil {
		return res, nil
	}

	if c.canUpdateIncrementally(path, fp) {
		return c.updateIncremental(ctx, path, content, fp, fn)
	}
	return c.parseFull(ctx, path, content, fp, fn)
}

// canUpdateIncrementally reports whether path was last seen with exactly this
// fingerprint, which means its cache entry was evicted or expired since.
func (c *Coordinator) canUpdateIncrementally(path, fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[path]
	return ok && st.Fingerprint == fp
}

// updateIncremental is the seam for diff-based reparsing. It currently does
// a full reparse, exactly like parseFull, and only differs in counting an
// incremental update.
func (c *Coordinator) updateIncremental(ctx context.Context, path, content, fp string, fn parse.Func) (*parse.Result, error) {
	res, err := c.parseFull(ctx, path, content, fp, fn)
	if err != nil {
		return nil, err
	}
	c.store.RecordIncremental()
	return res, nil
}

func (c *Coordinator) parseFull(ctx context.Context, path, content, fp string, fn parse.Func) (*parse.Result, error) {
	start := time.Now()
	res, err := c.invoke(ctx, path, content, fn)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	res.ParseTime = elapsed
	if !res.Success {
		// Failed results are returned as-is and never pinned in the cache.
		return res, nil
	}

	c.store.Put(path, fp, res, elapsed)
	c.updateFileState(path, fp, res)
	return res, nil
}

type outcome struct {
	res *parse.Result
	err error
}

// invoke runs fn under the configured timeout. The call runs in its own
// goroutine so a parse function that ignores ctx still cannot hold the
// caller past the bound; such a goroutine finishes in the background.
func (c *Coordinator) invoke(ctx context.Context, path, content string, fn parse.Func) (*parse.Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %s: panic: %v", ErrParse, path, r)}
			}
		}()
		res, err := fn(ctx, path, content)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		switch {
		case out.err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(out.err, ctxErr) {
				return nil, fmt.Errorf("%w: %s: %w", ErrParseTimeout, path, out.err)
			}
			if errors.Is(out.err, ErrParse) {
				return nil, out.err
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, out.err)
		case out.res == nil:
			return nil, fmt.Errorf("%w: %s: parse function returned no result", ErrParse, path)
		}
		return out.res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrParseTimeout, path, ctx.Err())
	}
}

func (c *Coordinator) updateFileState(path, fp string, res *parse.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[path] = FileState{
		Fingerprint:   fp,
		UpdatedAt:     c.now(),
		FunctionCount: len(res.Functions),
		ClassCount:    len(res.Classes),
		ImportCount:   len(res.Imports),
	}
}

// FileState returns the recorded state for path.
func (c *Coordinator) FileState(path string) (FileState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[path]
	return st, ok
}

// Len returns the number of files with recorded state.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}

// FileStates returns a copy of every recorded state.
func (c *Coordinator) FileStates() map[string]FileState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.states)
}

// RestoreFileStates replaces the state table with a copy of states.
func (c *Coordinator) RestoreFileStates(states map[string]FileState) {
	cp := make(map[string]FileState, len(states))
	maps.Copy(cp, states)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = cp
}

// Forget drops the state for path so the next miss takes the cold path.
func (c *Coordinator) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, path)
}

// Store returns the underlying cache store.
func (c *Coordinator) Store() *cache.Store {
	return c.store
}
