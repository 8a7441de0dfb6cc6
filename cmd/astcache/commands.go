package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/astcache/internal/optimizer"
	"github.com/dusk-indust/astcache/internal/parse"
)

// parsedFile is the CLI rendering of one batch result.
type parsedFile struct {
	Path   string        `json:"path"`
	Failed bool          `json:"failed"`
	Error  string        `json:"error,omitempty"`
	Result *parse.Result `json:"result,omitempty"`
}

func newParseCmd(flags *globalFlags) *cobra.Command {
	var (
		summary  bool
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Parse files in parallel batches through the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []optimizer.Option
			if progress {
				opts = append(opts, optimizer.WithProgress(func(ev optimizer.ProgressEvent) {
					fmt.Fprintln(cmd.ErrOrStderr(), optimizer.FormatProgress(ev))
				}))
			}
			a, err := newApp(cmd, flags, opts...)
			if err != nil {
				return err
			}

			results := a.opt.ParseBatch(cmd.Context(), args, a.parse)
			out := make([]parsedFile, 0, len(results))
			failed := 0
			for _, r := range results {
				pf := parsedFile{Path: r.Path, Failed: r.Failed()}
				if r.Failed() {
					failed++
					pf.Error = r.Result.Error
				}
				if !summary {
					pf.Result = r.Result
				}
				out = append(out, pf)
			}

			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if failed > 0 {
				a.logger.Warn("some files failed to parse", "failed", failed, "total", len(results))
			}
			return a.persist()
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "omit structural results, print status only")
	cmd.Flags().BoolVar(&progress, "progress", false, "print per-file progress to stderr")
	return cmd
}

func newReportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print cache metrics and tuning recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), a.opt.Report())
		},
	}
}

func newReclaimCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Run memory reclamation against the cached state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), a.opt.ReclaimMemory()); err != nil {
				return err
			}
			return a.persist()
		},
	}
}

func newPrewarmCmd(flags *globalFlags) *cobra.Command {
	var (
		accessLog string
		doParse   bool
	)

	cmd := &cobra.Command{
		Use:   "prewarm [file]...",
		Short: "Check the most frequently accessed files against the cache",
		Long: "Ranks files by access count, taken from --access-log (one path per line)\n" +
			"and any file arguments, and checks the top entries against the cache.\n" +
			"With --parse, missing entries are parsed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			accesses := append([]string(nil), args...)
			if accessLog != "" {
				lines, err := readLines(accessLog)
				if err != nil {
					return fmt.Errorf("read access log: %w", err)
				}
				accesses = append(accesses, lines...)
			}

			var fn parse.Func
			if doParse {
				fn = a.parse
			}
			rep := a.opt.Prewarm(cmd.Context(), optimizer.CountAccesses(accesses), fn)
			if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			return a.persist()
		},
	}
	cmd.Flags().StringVar(&accessLog, "access-log", "", "file listing accessed paths, one per line")
	cmd.Flags().BoolVar(&doParse, "parse", false, "parse files that are not cached")
	return cmd
}

func newInvalidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <file>...",
		Short: "Drop cached results for files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			removed := map[string]int{}
			for _, p := range args {
				removed[p] = a.opt.Invalidate(p)
			}
			if err := writeJSON(cmd.OutOrStdout(), removed); err != nil {
				return err
			}
			return a.persist()
		},
	}
}
