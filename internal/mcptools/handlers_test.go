package mcptools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/astcache/internal/cache"
	"github.com/dusk-indust/astcache/internal/optimizer"
	"github.com/dusk-indust/astcache/internal/parse"
)

// countingParser reports one function per line and counts its calls.
type countingParser struct {
	calls atomic.Int32
}

func (p *countingParser) Parse(_ context.Context, path, content string) (*parse.Result, error) {
	p.calls.Add(1)
	if strings.Contains(content, "SYNTAX ERROR") {
		return parse.Failed(parse.DetectLanguage(path, content), "unexpected token"), nil
	}
	res := &parse.Result{Success: true, Language: parse.DetectLanguage(path, content)}
	for i, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "func ") {
			res.Functions = append(res.Functions, parse.Symbol{Name: strings.TrimPrefix(line, "func "), Kind: parse.SymbolFunction, Line: i + 1})
		}
	}
	return res, nil
}

func newTestService(t *testing.T) (*CacheService, *countingParser) {
	t.Helper()
	store, err := cache.New(100, time.Hour)
	require.NoError(t, err)
	opt, err := optimizer.New(store, optimizer.DefaultConfig(), optimizer.WithLogger(discardLogger()))
	require.NoError(t, err)
	p := &countingParser{}
	return NewCacheService(opt, p.Parse, filepath.Join(t.TempDir(), "default.snap")), p
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCacheService_ParseFile(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()
	path := writeSource(t, t.TempDir(), "a.go", "package a\nfunc Run")

	_, out, err := svc.ParseFile(ctx, nil, ParseFileInput{Path: path})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	require.NotNil(t, out.Result)
	require.Len(t, out.Result.Functions, 1)
	assert.Equal(t, "Run", out.Result.Functions[0].Name)

	_, out, err = svc.ParseFile(ctx, nil, ParseFileInput{Path: path})
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestCacheService_ParseFile_InlineContent(t *testing.T) {
	svc, _ := newTestService(t)

	_, out, err := svc.ParseFile(context.Background(), nil, ParseFileInput{Path: "virtual.py", Content: "import os"})
	require.NoError(t, err)
	assert.Equal(t, parse.LangPython, out.Result.Language)
}

func TestCacheService_ParseFile_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ParseFile(ctx, nil, ParseFileInput{})
	assert.ErrorContains(t, err, "path is required")

	dir := t.TempDir()
	_, _, err = svc.ParseFile(ctx, nil, ParseFileInput{Path: filepath.Join(dir, "missing.go")})
	assert.ErrorIs(t, err, optimizer.ErrRead)
	assert.ErrorIs(t, err, os.ErrNotExist)

	binary := filepath.Join(dir, "blob.go")
	require.NoError(t, os.WriteFile(binary, []byte{0xff, 0xfe, 0x00}, 0o644))
	_, _, err = svc.ParseFile(ctx, nil, ParseFileInput{Path: binary})
	assert.ErrorIs(t, err, optimizer.ErrRead)
}

func TestCacheService_ParseBatch(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	paths := []string{
		writeSource(t, dir, "a.go", "func A"),
		writeSource(t, dir, "b.go", "SYNTAX ERROR"),
		filepath.Join(dir, "missing.go"),
	}

	_, out, err := svc.ParseBatch(context.Background(), nil, ParseBatchInput{Paths: paths})
	require.NoError(t, err)
	require.Len(t, out.Results, 3)
	assert.Equal(t, 2, out.Failed)

	for _, item := range out.Results {
		require.NotNil(t, item.Result)
		if item.Failed {
			assert.NotEmpty(t, item.Error)
		}
	}

	_, _, err = svc.ParseBatch(context.Background(), nil, ParseBatchInput{})
	assert.Error(t, err)
}

func TestCacheService_Invalidate(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ParseFile(ctx, nil, ParseFileInput{Path: "a.go", Content: "func A"})
	require.NoError(t, err)

	_, out, err := svc.Invalidate(ctx, nil, InvalidateInput{Path: "a.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Removed)

	_, _, err = svc.ParseFile(ctx, nil, ParseFileInput{Path: "a.go", Content: "func A"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())

	_, _, err = svc.Invalidate(ctx, nil, InvalidateInput{})
	assert.Error(t, err)
}

func TestCacheService_ReportAndReclaim(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, c := range []string{"func A", "func B", "func A"} {
		_, _, err := svc.ParseFile(ctx, nil, ParseFileInput{Path: "a.go", Content: c})
		require.NoError(t, err)
	}

	_, rep, err := svc.PerformanceReport(ctx, nil, PerformanceReportInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rep.Metrics.TotalParses)
	assert.Equal(t, 1, rep.Metrics.CurrentCacheSize)
	assert.Equal(t, 1, rep.TrackedFiles)
	assert.NotNil(t, rep.Recommendations)

	_, rec, err := svc.ReclaimMemory(ctx, nil, ReclaimMemoryInput{})
	require.NoError(t, err)
	assert.Empty(t, rec.Reclaim.Actions)
	assert.Equal(t, rep.Metrics.CurrentCacheSize, rec.Reclaim.CacheSize)
}

func TestCacheService_Snapshots(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.ParseFile(ctx, nil, ParseFileInput{Path: "a.go", Content: "func A"})
	require.NoError(t, err)

	_, saved, err := svc.SaveSnapshot(ctx, nil, SnapshotInput{})
	require.NoError(t, err)
	assert.Equal(t, svc.snapshotPath, saved.Path)
	assert.Equal(t, 1, saved.Entries)

	fresh, fp := newTestService(t)
	_, loaded, err := fresh.LoadSnapshot(ctx, nil, SnapshotInput{Path: saved.Path})
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Entries)

	_, out, err := fresh.ParseFile(ctx, nil, ParseFileInput{Path: "a.go", Content: "func A"})
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Zero(t, fp.calls.Load())
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestCacheService_LoadSnapshot_Missing(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.LoadSnapshot(context.Background(), nil, SnapshotInput{Path: filepath.Join(t.TempDir(), "none.snap")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimizer.ErrSnapshotNotFound))
}

func TestCacheService_NoDefaultSnapshotPath(t *testing.T) {
	svc, _ := newTestService(t)
	svc.snapshotPath = ""

	_, _, err := svc.SaveSnapshot(context.Background(), nil, SnapshotInput{})
	assert.ErrorContains(t, err, "path is required")
}
