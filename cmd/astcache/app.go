package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/astcache/internal/config"
	"github.com/dusk-indust/astcache/internal/optimizer"
	"github.com/dusk-indust/astcache/internal/parse"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	ConfigPath   string
	SnapshotPath string
	NoSnapshot   bool
	Save         bool
	Verbose      bool
}

// app is the wiring behind a single command invocation.
type app struct {
	cfg    *config.Config
	opt    *optimizer.Optimizer
	parse  parse.Func
	logger *slog.Logger
	flags  *globalFlags
}

func newApp(cmd *cobra.Command, flags *globalFlags, opts ...optimizer.Option) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if flags.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts = append([]optimizer.Option{optimizer.WithLogger(logger)}, opts...)
	opt, err := optimizer.NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		opt:    opt,
		parse:  parse.NewTreeSitter().Func(),
		logger: logger,
		flags:  flags,
	}
	if err := a.restore(); err != nil {
		return nil, err
	}
	return a, nil
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigPath != "" {
		cfg, err = config.LoadFile(flags.ConfigPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, err
	}
	if flags.SnapshotPath != "" {
		cfg.Snapshot.Path = flags.SnapshotPath
	}
	return cfg, nil
}

// restore loads the snapshot if one exists.
func (a *app) restore() error {
	if a.flags.NoSnapshot || a.cfg.Snapshot.Path == "" {
		return nil
	}
	err := a.opt.Load(a.cfg.Snapshot.Path)
	if errors.Is(err, optimizer.ErrSnapshotNotFound) {
		return nil
	}
	return err
}

// persist saves the snapshot when auto-save or --save asks for it.
func (a *app) persist() error {
	if a.flags.NoSnapshot || a.cfg.Snapshot.Path == "" {
		return nil
	}
	if !a.cfg.Snapshot.AutoSave && !a.flags.Save {
		return nil
	}
	return a.opt.Save(a.cfg.Snapshot.Path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readLines returns the trimmed, non-empty lines of the file at path.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
