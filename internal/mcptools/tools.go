package mcptools

import (
	"github.com/dusk-indust/astcache/internal/optimizer"
	"github.com/dusk-indust/astcache/internal/parse"
)

// --- MCP Tool Input/Output Types ---
// The MCP Go SDK derives each tool's JSON schema from these struct tags.

// ParseFileInput is the input for the parse_file MCP tool.
type ParseFileInput struct {
	Path    string `json:"path" jsonschema:"path of the file to parse; used as the cache key"`
	Content string `json:"content,omitempty" jsonschema:"file content; when empty the file is read from disk"`
}

// ParseFileOutput is the result of the parse_file MCP tool.
type ParseFileOutput struct {
	Path   string        `json:"path"`
	Cached bool          `json:"cached"`
	Result *parse.Result `json:"result"`
}

// ParseBatchInput is the input for the parse_batch MCP tool.
type ParseBatchInput struct {
	Paths []string `json:"paths" jsonschema:"file paths to parse in parallel batches"`
}

// BatchItem is one file of a parse_batch result.
type BatchItem struct {
	Path   string        `json:"path"`
	Failed bool          `json:"failed"`
	Error  string        `json:"error,omitempty"`
	Result *parse.Result `json:"result"`
}

// ParseBatchOutput is the result of the parse_batch MCP tool.
type ParseBatchOutput struct {
	Results []BatchItem `json:"results"`
	Failed  int         `json:"failed"`
}

// InvalidateInput is the input for the invalidate MCP tool.
type InvalidateInput struct {
	Path string `json:"path" jsonschema:"path whose cached results should be dropped"`
}

// InvalidateOutput is the result of the invalidate MCP tool.
type InvalidateOutput struct {
	Removed int `json:"removed"`
}

// ReclaimMemoryInput is the input for the reclaim_memory MCP tool.
type ReclaimMemoryInput struct{}

// ReclaimMemoryOutput is the result of the reclaim_memory MCP tool.
type ReclaimMemoryOutput struct {
	Reclaim optimizer.ReclaimReport `json:"reclaim"`
}

// PerformanceReportInput is the input for the performance_report MCP tool.
type PerformanceReportInput struct{}

// PerformanceReportOutput is the result of the performance_report MCP tool.
type PerformanceReportOutput struct {
	Metrics         optimizer.Metrics `json:"metrics"`
	TrackedFiles    int               `json:"tracked_files"`
	Recommendations []string          `json:"recommendations"`
}

// SnapshotInput is the input for the save_snapshot and load_snapshot tools.
type SnapshotInput struct {
	Path string `json:"path,omitempty" jsonschema:"snapshot file path (default: the configured snapshot path)"`
}

// SnapshotOutput is the result of the save_snapshot and load_snapshot tools.
type SnapshotOutput struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}
