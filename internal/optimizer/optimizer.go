// Package optimizer coordinates batched, parallel parsing on top of the
// incremental parse cache, and owns memory reclamation, reporting and
// persistence of the cache state.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dusk-indust/astcache/internal/cache"
	"github.com/dusk-indust/astcache/internal/config"
	"github.com/dusk-indust/astcache/internal/incremental"
	"github.com/dusk-indust/astcache/internal/parse"
)

// Config holds the coordinator's tuning knobs.
type Config struct {
	Workers      int
	BatchSize    int
	ParseTimeout time.Duration
	SoftLimitMB  float64
	HardLimitMB  float64
	ShrinkRatio  float64
	PrewarmTopN  int
}

// DefaultConfig mirrors config.Default.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom extracts the coordinator settings from a loaded config file.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Workers:      c.Parallel.Workers,
		BatchSize:    c.Parallel.BatchSize,
		ParseTimeout: c.Parallel.ParseTimeout,
		SoftLimitMB:  c.Reclaim.SoftLimitMB,
		HardLimitMB:  c.Reclaim.HardLimitMB,
		ShrinkRatio:  c.Reclaim.ShrinkRatio,
		PrewarmTopN:  c.Prewarm.TopN,
	}
}

func (c Config) validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", config.ErrInvalid)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", config.ErrInvalid)
	case c.ShrinkRatio <= 0 || c.ShrinkRatio >= 1:
		return fmt.Errorf("%w: shrink ratio must be in (0, 1)", config.ErrInvalid)
	case c.ParseTimeout < 0 || c.PrewarmTopN < 0:
		return fmt.Errorf("%w: negative timeout or prewarm size", config.ErrInvalid)
	}
	return nil
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// WithReadFile replaces os.ReadFile as the source of file content.
func WithReadFile(read func(path string) ([]byte, error)) Option {
	return func(o *Optimizer) { o.readFile = read }
}

// WithProgress registers a callback for per-file batch progress. It is
// called from worker goroutines and must be safe for concurrent use.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(o *Optimizer) { o.onProgress = fn }
}

// Optimizer is safe for concurrent use.
type Optimizer struct {
	cfg        Config
	store      *cache.Store
	inc        *incremental.Coordinator
	logger     *slog.Logger
	readFile   func(string) ([]byte, error)
	onProgress func(ProgressEvent)

	reclaimMu sync.Mutex
}

// New builds an Optimizer over store. Invalid settings are the only fatal
// error this package returns.
func New(store *cache.Store, cfg Config, opts ...Option) (*Optimizer, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil cache store", config.ErrInvalid)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &Optimizer{
		cfg:      cfg,
		store:    store,
		logger:   slog.Default(),
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "optimizer")
	o.inc = incremental.New(store, incremental.WithParseTimeout(cfg.ParseTimeout))
	return o, nil
}

// NewFromConfig creates the cache store and the Optimizer described by cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := cache.New(cfg.Cache.MaxSize, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}
	return New(store, ConfigFrom(cfg), opts...)
}

// Store returns the underlying cache store.
func (o *Optimizer) Store() *cache.Store { return o.store }

// Config returns the active settings.
func (o *Optimizer) Config() Config { return o.cfg }

// CacheKey returns the absolute, cleaned form of path under which results
// are cached, so "a.go", "./a.go" and the watcher's absolute path for the
// same file share one entry.
func CacheKey(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// ReadFile reads path through the configured reader. Unreadable files and
// content that is not UTF-8 text fail with ErrRead.
func (o *Optimizer) ReadFile(path string) (string, error) {
	data, err := o.readFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read file: %w", ErrRead, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: cannot read file %s: not valid UTF-8 text", ErrRead, path)
	}
	return string(data), nil
}

// ParseOne parses a single file through the incremental coordinator.
func (o *Optimizer) ParseOne(ctx context.Context, path, content string, fn parse.Func) (*parse.Result, error) {
	return o.inc.Parse(ctx, CacheKey(path), content, fn)
}

// Cached reports whether a live result for content is cached under path,
// without counting a hit or miss.
func (o *Optimizer) Cached(path, content string) bool {
	return o.store.Contains(CacheKey(path), incremental.Fingerprint(content))
}

// Invalidate forgets everything known about path, forcing a cold parse on
// the next request. Returns the number of cache entries removed.
func (o *Optimizer) Invalidate(path string) int {
	key := CacheKey(path)
	n := o.store.Invalidate(key)
	o.inc.Forget(key)
	o.logger.Debug("invalidated", "path", key, "entries", n)
	return n
}

// TrackedFiles returns the number of files with recorded state.
func (o *Optimizer) TrackedFiles() int {
	return o.inc.Len()
}
