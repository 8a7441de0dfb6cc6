package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/astcache/internal/mcptools"
	"github.com/dusk-indust/astcache/internal/metrics"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		stdio    bool
		watchDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cache as MCP tools, with Prometheus metrics",
		Long: "Serves the MCP tools over streamable HTTP at /mcp and Prometheus metrics\n" +
			"at the configured metrics path. With --stdio the MCP tools are served on\n" +
			"stdin/stdout instead and no HTTP listener is started.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := mcptools.NewCacheService(a.opt, a.parse, a.cfg.Snapshot.Path)
			server := mcptools.NewCacheMCPServer(svc)

			g, gctx := errgroup.WithContext(ctx)
			if watchDir != "" {
				g.Go(func() error { return runWatcher(gctx, a, watchDir) })
			}
			if stdio {
				g.Go(func() error { return mcptools.RunStdio(gctx, server) })
			} else {
				handler := newServeMux(a, mcptools.NewHTTPHandler(server))
				a.logger.Info("serving", "addr", addr, "mcp", "/mcp", "metrics", a.cfg.Serve.MetricsPath)
				g.Go(func() error { return mcptools.RunHTTP(gctx, addr, handler) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return a.persist()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: serve.addr)")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve MCP over stdin/stdout")
	cmd.Flags().StringVar(&watchDir, "watch", "", "also invalidate entries for files changing under this directory")
	return cmd
}

// newServeMux routes /mcp to the MCP handler and the metrics path to a
// registry scraping the optimizer.
func newServeMux(a *app, mcpHandler http.Handler) *http.ServeMux {
	reg := metrics.NewRegistry(a.opt)
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.Handle(a.cfg.Serve.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}
