package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "astcache",
		Short:         "Incremental, cached source parsing with batch and memory management",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.ConfigPath, "config", "c", "", "path to config file (default: astcache.yml in the working directory)")
	pf.StringVar(&flags.SnapshotPath, "snapshot", "", "snapshot file (overrides snapshot.path)")
	pf.BoolVar(&flags.NoSnapshot, "no-snapshot", false, "neither load nor save the snapshot")
	pf.BoolVar(&flags.Save, "save", false, "save the snapshot on exit even when snapshot.auto_save is off")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newParseCmd(&flags),
		newReportCmd(&flags),
		newReclaimCmd(&flags),
		newPrewarmCmd(&flags),
		newInvalidateCmd(&flags),
		newWatchCmd(&flags),
		newServeCmd(&flags),
	)
	return root
}
