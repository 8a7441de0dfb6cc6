// Package config loads astcache settings from astcache.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultMaxSize      = 1000
	DefaultTTL          = time.Hour
	DefaultWorkers      = 4
	DefaultBatchSize    = 50
	DefaultSoftLimitMB  = 100
	DefaultHardLimitMB  = 200
	DefaultShrinkRatio  = 0.7
	DefaultPrewarmTopN  = 10
	DefaultSnapshotPath = ".astcache/cache.snap"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all astcache settings.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Parallel ParallelConfig `yaml:"parallel"`
	Reclaim  ReclaimConfig  `yaml:"reclaim"`
	Prewarm  PrewarmConfig  `yaml:"prewarm"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Serve    ServeConfig    `yaml:"serve"`
}

// CacheConfig bounds the cache table.
type CacheConfig struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// ParallelConfig controls batch parsing.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
	// ParseTimeout bounds a single parse call. Zero means unbounded.
	ParseTimeout time.Duration `yaml:"parse_timeout"`
}

// ReclaimConfig holds the two-tier memory reclaim thresholds.
type ReclaimConfig struct {
	SoftLimitMB float64 `yaml:"soft_limit_mb"`
	HardLimitMB float64 `yaml:"hard_limit_mb"`
	ShrinkRatio float64 `yaml:"shrink_ratio"`
}

// PrewarmConfig controls cache pre-warming.
type PrewarmConfig struct {
	TopN int `yaml:"top_n"`
}

// SnapshotConfig locates the persisted cache.
type SnapshotConfig struct {
	Path string `yaml:"path"`
	// AutoSave writes a snapshot when a CLI command or server exits.
	AutoSave bool `yaml:"auto_save"`
}

// ServeConfig configures `astcache serve`.
type ServeConfig struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Cache:    CacheConfig{MaxSize: DefaultMaxSize, TTL: DefaultTTL},
		Parallel: ParallelConfig{Workers: DefaultWorkers, BatchSize: DefaultBatchSize},
		Reclaim: ReclaimConfig{
			SoftLimitMB: DefaultSoftLimitMB,
			HardLimitMB: DefaultHardLimitMB,
			ShrinkRatio: DefaultShrinkRatio,
		},
		Prewarm:  PrewarmConfig{TopN: DefaultPrewarmTopN},
		Snapshot: SnapshotConfig{Path: DefaultSnapshotPath},
		Serve:    ServeConfig{Addr: "127.0.0.1:8765", MetricsPath: "/metrics"},
	}
}

// Load reads astcache.yml or astcache.yaml from dir on top of the defaults.
// A missing file is not an error.
func Load(dir string) (*Config, error) {
	for _, name := range []string{"astcache.yml", "astcache.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFile(path)
	}
	return Default(), nil
}

// LoadFile reads the config at path on top of the defaults and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Cache.MaxSize <= 0:
		return fmt.Errorf("%w: cache.max_size must be positive", ErrInvalid)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalid)
	case c.Parallel.Workers <= 0:
		return fmt.Errorf("%w: parallel.workers must be positive", ErrInvalid)
	case c.Parallel.BatchSize <= 0:
		return fmt.Errorf("%w: parallel.batch_size must be positive", ErrInvalid)
	case c.Parallel.ParseTimeout < 0:
		return fmt.Errorf("%w: parallel.parse_timeout must not be negative", ErrInvalid)
	case c.Reclaim.SoftLimitMB < 0 || c.Reclaim.HardLimitMB < 0:
		return fmt.Errorf("%w: reclaim limits must not be negative", ErrInvalid)
	case c.Reclaim.HardLimitMB < c.Reclaim.SoftLimitMB:
		return fmt.Errorf("%w: reclaim.hard_limit_mb below soft_limit_mb", ErrInvalid)
	case c.Reclaim.ShrinkRatio <= 0 || c.Reclaim.ShrinkRatio >= 1:
		return fmt.Errorf("%w: reclaim.shrink_ratio must be in (0, 1)", ErrInvalid)
	case c.Prewarm.TopN < 0:
		return fmt.Errorf("%w: prewarm.top_n must not be negative", ErrInvalid)
	}
	return nil
}
