package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewCacheMCPServer creates an MCP server with all 7 parse-cache tools
// registered.
func NewCacheMCPServer(svc *CacheService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "astcache",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_file",
		Description: "Parse one source file and return its functions, classes, imports and variables. Unchanged content is served from the cache.",
	}, svc.ParseFile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_batch",
		Description: "Parse many files in parallel batches. Always returns one result per path; unreadable or unparseable files are marked failed with an error message.",
	}, svc.ParseBatch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "invalidate",
		Description: "Drop every cached result for a file path so the next request parses it from scratch.",
	}, svc.Invalidate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reclaim_memory",
		Description: "Run memory reclamation: age out old entries above the soft limit, then shrink the cache above the hard limit.",
	}, svc.ReclaimMemory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "performance_report",
		Description: "Return cache metrics (hit rate, parse time, memory, evictions) and tuning recommendations.",
	}, svc.PerformanceReport)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_snapshot",
		Description: "Persist the cache contents, LRU order, file states and counters to a snapshot file.",
	}, svc.SaveSnapshot)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_snapshot",
		Description: "Replace the cache state with a previously saved snapshot. The current state is kept if loading fails.",
	}, svc.LoadSnapshot)

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}

// RunHTTP serves handler on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunStdio runs server on the stdio transport, blocking until stdin is
// closed or ctx is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
