package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/astcache/internal/watch"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Invalidate cached results as files change on disk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runWatcher(ctx, a, dir); err != nil {
				return err
			}
			return a.persist()
		},
	}
}

// runWatcher invalidates every changed path under dir until ctx is done.
func runWatcher(ctx context.Context, a *app, dir string) error {
	w, err := watch.New(watch.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return err
	}
	a.logger.Info("watching for changes", "dir", dir)
	return w.Run(ctx, func(path string) {
		a.opt.Invalidate(path)
	})
}
