package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/astcache/internal/optimizer"
	"github.com/dusk-indust/astcache/internal/parse"
)

// CacheService holds the coordinator and parse function used by MCP tool
// handlers.
type CacheService struct {
	opt          *optimizer.Optimizer
	parse        parse.Func
	snapshotPath string
}

// NewCacheService creates a CacheService. snapshotPath is used by the
// snapshot tools when a call names no path.
func NewCacheService(opt *optimizer.Optimizer, fn parse.Func, snapshotPath string) *CacheService {
	return &CacheService{opt: opt, parse: fn, snapshotPath: snapshotPath}
}

// ParseFile returns the structural result for one file, from the cache when
// the content is unchanged.
func (s *CacheService) ParseFile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ParseFileInput,
) (*mcp.CallToolResult, ParseFileOutput, error) {
	if input.Path == "" {
		return nil, ParseFileOutput{}, fmt.Errorf("path is required")
	}

	content := input.Content
	if content == "" {
		var err error
		if content, err = s.opt.ReadFile(input.Path); err != nil {
			return nil, ParseFileOutput{}, err
		}
	}

	cached := s.opt.Cached(input.Path, content)
	res, err := s.opt.ParseOne(ctx, input.Path, content, s.parse)
	if err != nil {
		return nil, ParseFileOutput{}, fmt.Errorf("parse %s: %w", input.Path, err)
	}
	return nil, ParseFileOutput{Path: input.Path, Cached: cached, Result: res}, nil
}

// ParseBatch parses many files in parallel. Per-file failures are reported
// in the output, never as a tool error.
func (s *CacheService) ParseBatch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ParseBatchInput,
) (*mcp.CallToolResult, ParseBatchOutput, error) {
	if len(input.Paths) == 0 {
		return nil, ParseBatchOutput{}, fmt.Errorf("paths is required")
	}

	results := s.opt.ParseBatch(ctx, input.Paths, s.parse)
	out := ParseBatchOutput{Results: make([]BatchItem, 0, len(results))}
	for _, r := range results {
		item := BatchItem{Path: r.Path, Result: r.Result, Failed: r.Failed()}
		if r.Failed() {
			item.Error = r.Result.Error
			out.Failed++
		}
		out.Results = append(out.Results, item)
	}
	return nil, out, nil
}

// Invalidate drops every cached result for a path.
func (s *CacheService) Invalidate(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input InvalidateInput,
) (*mcp.CallToolResult, InvalidateOutput, error) {
	if input.Path == "" {
		return nil, InvalidateOutput{}, fmt.Errorf("path is required")
	}
	return nil, InvalidateOutput{Removed: s.opt.Invalidate(input.Path)}, nil
}

// ReclaimMemory runs the two-tier memory reclaim policy once.
func (s *CacheService) ReclaimMemory(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ReclaimMemoryInput,
) (*mcp.CallToolResult, ReclaimMemoryOutput, error) {
	return nil, ReclaimMemoryOutput{Reclaim: s.opt.ReclaimMemory()}, nil
}

// PerformanceReport returns the metrics snapshot with recommendations.
func (s *CacheService) PerformanceReport(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ PerformanceReportInput,
) (*mcp.CallToolResult, PerformanceReportOutput, error) {
	rep := s.opt.Report()
	return nil, PerformanceReportOutput{
		Metrics:         rep.Metrics,
		TrackedFiles:    rep.TrackedFiles,
		Recommendations: rep.Recommendations,
	}, nil
}

// SaveSnapshot writes the cache state to disk.
func (s *CacheService) SaveSnapshot(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SnapshotInput,
) (*mcp.CallToolResult, SnapshotOutput, error) {
	path, err := s.resolve(input.Path)
	if err != nil {
		return nil, SnapshotOutput{}, err
	}
	if err := s.opt.Save(path); err != nil {
		return nil, SnapshotOutput{}, err
	}
	return nil, SnapshotOutput{Path: path, Entries: s.opt.Store().Len()}, nil
}

// LoadSnapshot replaces the cache state with a snapshot from disk.
func (s *CacheService) LoadSnapshot(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SnapshotInput,
) (*mcp.CallToolResult, SnapshotOutput, error) {
	path, err := s.resolve(input.Path)
	if err != nil {
		return nil, SnapshotOutput{}, err
	}
	if err := s.opt.Load(path); err != nil {
		return nil, SnapshotOutput{}, err
	}
	return nil, SnapshotOutput{Path: path, Entries: s.opt.Store().Len()}, nil
}

func (s *CacheService) resolve(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if s.snapshotPath == "" {
		return "", fmt.Errorf("path is required: no default snapshot path configured")
	}
	return s.snapshotPath, nil
}
