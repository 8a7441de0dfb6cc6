package optimizer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/dusk-indust/astcache/internal/incremental"
	"github.com/dusk-indust/astcache/internal/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.snap")
	contents := map[string]string{"a.go": "package a", "b.py": "import os", "c.rs": "fn main() {}"}

	src := newTestOptimizer(t, 10, DefaultConfig())
	originals := map[string]*parse.Result{}
	for p, c := range contents {
		res, err := src.ParseOne(ctx, p, c, stubParser(nil))
		require.NoError(t, err)
		originals[p] = res
	}
	_, err := src.ParseOne(ctx, "a.go", "package a", stubParser(nil))
	require.NoError(t, err)
	require.NoError(t, src.Save(path))

	dst := newTestOptimizer(t, 10, DefaultConfig())
	require.NoError(t, dst.Load(path))

	for p, c := range contents {
		got, ok := dst.Store().Get(CacheKey(p), incremental.Fingerprint(c))
		require.True(t, ok, p)
		assert.Equal(t, originals[p], got, p)
	}

	m := dst.Metrics()
	assert.Equal(t, int64(3), m.TotalParses)
	assert.Equal(t, 3, m.CurrentCacheSize)
	assert.Equal(t, 3, dst.TrackedFiles())
	assert.Greater(t, m.EstimatedMemoryMB, 0.0)
}

func TestSaveLoad_ParseAfterLoadUsesCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.snap")

	src := newTestOptimizer(t, 10, DefaultConfig())
	_, err := src.ParseOne(ctx, "a.go", "x", stubParser(nil))
	require.NoError(t, err)
	require.NoError(t, src.Save(path))

	dst := newTestOptimizer(t, 10, DefaultConfig())
	require.NoError(t, dst.Load(path))

	var calls atomic.Int32
	res, err := dst.ParseOne(ctx, "a.go", "x", stubParser(&calls))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, calls.Load())
}

func TestLoad_MissingFileLeavesState(t *testing.T) {
	o := newTestOptimizer(t, 10, DefaultConfig())
	_, err := o.ParseOne(context.Background(), "a.go", "x", stubParser(nil))
	require.NoError(t, err)

	err = o.Load(filepath.Join(t.TempDir(), "absent.snap"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Equal(t, 1, o.Store().Len())
	assert.Equal(t, 1, o.TrackedFiles())
}

func TestLoad_CorruptFileLeavesState(t *testing.T) {
	o := newTestOptimizer(t, 10, DefaultConfig())
	_, err := o.ParseOne(context.Background(), "a.go", "x", stubParser(nil))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bad.snap")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a snapshot"), 0o644))

	err = o.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrSnapshotNotFound)
	assert.Equal(t, 1, o.Store().Len())
}

func TestSave_UnwritableLocation(t *testing.T) {
	o := newTestOptimizer(t, 10, DefaultConfig())
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := o.Save(filepath.Join(blocker, "cache.snap"))
	assert.ErrorIs(t, err, ErrPersistence)
}
