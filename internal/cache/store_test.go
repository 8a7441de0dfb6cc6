package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dusk-indust/astcache/internal/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T, maxSize int, ttl time.Duration) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s, err := New(maxSize, ttl, WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

func result(name string) *parse.Result {
	return &parse.Result{
		Success:   true,
		Language:  parse.LangGo,
		Functions: []parse.Symbol{{Name: name, Kind: parse.SymbolFunction, Line: 1}},
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(0, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(10, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStore_HitAfterPut(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	want := result("main")

	s.Put("main.go", "fp1", want, 5*time.Millisecond)
	got, ok := s.Get("main.go", "fp1")

	require.True(t, ok)
	assert.Same(t, want, got)

	m := s.Metrics()
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(0), m.CacheMisses)
	assert.Equal(t, int64(1), m.TotalParses)
}

func TestStore_HitUpdatesAccessTracking(t *testing.T) {
	s, clock := newTestStore(t, 10, time.Hour)
	s.Put("a.go", "fp", result("a"), 0)
	clock.Advance(time.Minute)

	_, ok := s.Get("a.go", "fp")
	require.True(t, ok)

	st := s.Export()
	require.Len(t, st.Entries, 1)
	assert.Equal(t, int64(2), st.Entries[0].AccessCount)
	assert.Equal(t, clock.Now(), st.Entries[0].LastAccess)
}

func TestStore_FingerprintMismatchEvicts(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	s.Put("a.go", "fp1", result("a"), 0)

	_, ok := s.Get("a.go", "fp2")
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Metrics().CacheMisses)

	_, ok = s.Get("a.go", "fp1")
	assert.False(t, ok, "stale fingerprint should have been removed")
	assert.Equal(t, 0, s.Len())
}

func TestStore_FingerprintMismatchLeavesOtherPaths(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	s.Put("a.go", "fp1", result("a"), 0)
	s.Put("b.go", "fp1", result("b"), 0)

	_, ok := s.Get("a.go", "fp2")
	assert.False(t, ok)

	_, ok = s.Get("b.go", "fp1")
	assert.True(t, ok)
}

func TestStore_LRUEviction(t *testing.T) {
	const n = 3
	s, _ := newTestStore(t, n, time.Hour)

	for i := 0; i < n; i++ {
		s.Put(fmt.Sprintf("f%d.go", i), "fp", result("x"), 0)
	}
	// Touch f0 so f1 becomes the least recently used.
	_, ok := s.Get("f0.go", "fp")
	require.True(t, ok)

	s.Put("f3.go", "fp", result("x"), 0)

	assert.Equal(t, n, s.Len())
	assert.False(t, s.Contains("f1.go", "fp"))
	_, ok = s.Get("f1.go", "fp")
	assert.False(t, ok)

	for _, p := range []string{"f0.go", "f2.go", "f3.go"} {
		assert.True(t, s.Contains(p, "fp"), p)
	}
	assert.Equal(t, int64(1), s.Metrics().Evictions)
}

func TestStore_PutUpsertsSameKey(t *testing.T) {
	s, _ := newTestStore(t, 2, time.Hour)
	s.Put("a.go", "fp", result("old"), 0)
	s.Put("a.go", "fp", result("new"), 0)

	assert.Equal(t, 1, s.Len())
	got, ok := s.Get("a.go", "fp")
	require.True(t, ok)
	assert.Equal(t, "new", got.Functions[0].Name)
}

func TestStore_TTLExpiry(t *testing.T) {
	const ttl = 10 * time.Second
	s, clock := newTestStore(t, 10, ttl)
	s.Put("a.go", "fp", result("a"), 0)

	clock.Advance(ttl)
	_, ok := s.Get("a.go", "fp")
	assert.True(t, ok, "entry exactly TTL old is still live")

	clock.Advance(time.Second)
	_, ok = s.Get("a.go", "fp")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ContainsHasNoSideEffects(t *testing.T) {
	s, clock := newTestStore(t, 10, time.Minute)
	s.Put("a.go", "fp", result("a"), 0)

	assert.True(t, s.Contains("a.go", "fp"))
	assert.False(t, s.Contains("a.go", "other"))

	clock.Advance(2 * time.Minute)
	assert.False(t, s.Contains("a.go", "fp"))

	m := s.Metrics()
	assert.Zero(t, m.CacheHits)
	assert.Zero(t, m.CacheMisses)
	assert.Equal(t, 1, m.Size, "Contains never removes entries")
}

func TestStore_Invalidate(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	s.Put("a.go", "fp1", result("a"), 0)
	s.Put("a.go", "fp2", result("a"), 0)
	s.Put("b.go", "fp1", result("b"), 0)

	assert.Equal(t, 2, s.Invalidate("a.go"))
	assert.Equal(t, 0, s.Invalidate("a.go"))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("b.go", "fp1"))
}

func TestStore_ClearKeepsCounters(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	s.Put("a.go", "fp", result("a"), 0)
	s.Get("a.go", "fp")

	s.Clear()

	m := s.Metrics()
	assert.Equal(t, 0, m.Size)
	assert.Zero(t, m.MemoryMB)
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(1), m.TotalParses)

	s.ResetMetrics()
	m = s.Metrics()
	assert.Zero(t, m.CacheHits)
	assert.Zero(t, m.TotalParses)
}

func TestStore_HitRateArithmetic(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	s.Put("a.go", "fp", result("a"), 0)

	for i := 0; i < 3; i++ {
		_, ok := s.Get("a.go", "fp")
		require.True(t, ok)
	}
	for i := 0; i < 2; i++ {
		_, ok := s.Get(fmt.Sprintf("missing%d.go", i), "fp")
		require.False(t, ok)
	}

	assert.InDelta(t, 60.0, s.Metrics().HitRate, 1e-9)
}

func TestHitRate_NoLookups(t *testing.T) {
	assert.Zero(t, HitRate(0, 0))
	assert.InDelta(t, 25.0, HitRate(1, 3), 1e-9)
}

func TestStore_AverageParseTimeEMA(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)

	s.Put("a.go", "1", result("a"), 100*time.Millisecond)
	assert.InDelta(t, 100.0, s.Metrics().AverageParseTimeMS, 1e-9)

	s.Put("b.go", "1", result("b"), 200*time.Millisecond)
	// 0.1*200 + 0.9*100
	assert.InDelta(t, 110.0, s.Metrics().AverageParseTimeMS, 1e-9)

	s.Put("c.go", "1", result("c"), 0)
	assert.InDelta(t, 99.0, s.Metrics().AverageParseTimeMS, 1e-9)
}

func TestStore_MemoryEstimate(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	assert.Zero(t, s.MemoryBytes())

	s.Put("a.go", "fp", result("a"), 0)
	one := s.MemoryBytes()
	assert.Positive(t, one)

	s.Put("b.go", "fp", result("a"), 0)
	assert.Equal(t, 2*one, s.MemoryBytes())
}

func TestStore_RemoveOlderThan(t *testing.T) {
	s, clock := newTestStore(t, 10, time.Hour)
	s.Put("old.go", "fp", result("old"), 0)
	clock.Advance(40 * time.Minute)
	s.Put("new.go", "fp", result("new"), 0)

	assert.Equal(t, 1, s.RemoveOlderThan(30*time.Minute))
	assert.False(t, s.Contains("old.go", "fp"))
	assert.True(t, s.Contains("new.go", "fp"))
}

func TestStore_ShrinkTo(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	for i := 0; i < 10; i++ {
		s.Put(fmt.Sprintf("f%d.go", i), "fp", result("x"), 0)
	}
	s.Get("f0.go", "fp")

	assert.Equal(t, 3, s.ShrinkTo(7))
	assert.Equal(t, 7, s.Len())
	assert.True(t, s.Contains("f0.go", "fp"), "recently read entry survives")
	for _, p := range []string{"f1.go", "f2.go", "f3.go"} {
		assert.False(t, s.Contains(p, "fp"), p)
	}
	assert.Equal(t, int64(3), s.Metrics().Evictions)
}

func TestStore_ExportRestorePreservesOrder(t *testing.T) {
	src, _ := newTestStore(t, 3, time.Hour)
	src.Put("a.go", "fp", result("a"), 0)
	src.Put("b.go", "fp", result("b"), 0)
	src.Put("c.go", "fp", result("c"), 0)
	src.Get("a.go", "fp") // order now b, c, a

	st := src.Export()
	require.Len(t, st.Entries, 3)
	assert.Equal(t, "b.go", st.Entries[0].Path)
	assert.Equal(t, "a.go", st.Entries[2].Path)

	dst, _ := newTestStore(t, 3, time.Hour)
	require.NoError(t, dst.Restore(st))

	assert.Equal(t, src.Metrics().CacheHits, dst.Metrics().CacheHits)
	assert.Equal(t, src.MemoryBytes(), dst.MemoryBytes())

	// b is least recently used in the restored store as well.
	dst.Put("d.go", "fp", result("d"), 0)
	assert.False(t, dst.Contains("b.go", "fp"))
	assert.True(t, dst.Contains("a.go", "fp"))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t, 50, time.Hour)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				path := fmt.Sprintf("f%d.go", (w*31+i)%80)
				if _, ok := s.Get(path, "fp"); !ok {
					s.Put(path, "fp", result(path), time.Millisecond)
				}
				if i%50 == 0 {
					s.Invalidate(path)
				}
			}
		}(w)
	}
	wg.Wait()

	m := s.Metrics()
	assert.LessOrEqual(t, m.Size, 50)
	assert.Equal(t, int64(8*200), m.CacheHits+m.CacheMisses)
}
