package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aellingwood/sasswatch/internal/config"
	"github.com/aellingwood/sasswatch/internal/runner"
	"github.com/aellingwood/sasswatch/internal/server"
	"github.com/aellingwood/sasswatch/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "sasswatch <input> [flags]",
	Short: "Watch a stylesheet and everything it imports",
	Long: `sasswatch watches a Sass or CSS file together with every file it imports.
Whenever the set of imported files or the content of any of them changes, the
input is passed through the command (or copied verbatim) to the output.`,
	Args:          inputArgs,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWatch,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config file (YAML or TOML)")
	addWatchFlags(rootCmd.Flags())
	rootCmd.Flags().BoolP("version", "V", false, "print the version")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func inputArgs(cmd *cobra.Command, args []string) error {
	switch {
	case len(args) == 0:
		// A bare invocation gets the usage text as well.
		if !anyFlagChanged(cmd.Flags()) {
			_ = cmd.Usage()
		}
		return errNoInput
	case len(args) > 1:
		return errExtraInput
	}
	return nil
}

func anyFlagChanged(fs *pflag.FlagSet) bool {
	changed := false
	fs.VisitAll(func(f *pflag.Flag) {
		changed = changed || f.Changed
	})
	return changed
}

// loadConfig merges the config file, environment and flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.WithOverrides(flagOverrides(cmd.Flags()))
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	input := args[0]
	stderr := cmd.ErrOrStderr()

	w, err := watch.New([]string{input}, *cfg, watch.WithLogOutput(stderr))
	if err != nil {
		return err
	}
	r, err := runner.New(input, *cfg)
	if err != nil {
		return err
	}
	r.Stdout = cmd.OutOrStdout()
	r.Stderr = stderr

	var srv *server.Server
	if cfg.LiveReload.Enabled {
		srv = server.New(cfg.LiveReload.Addr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	g.Go(func() error {
		return consume(ctx, w.Events(), r, srv, stderr)
	})
	if srv != nil {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}
	return g.Wait()
}

// consume processes every watcher event until the channel closes. A failing
// command is reported and watching continues.
func consume(ctx context.Context, events <-chan watch.Event, r *runner.Runner, srv *server.Server, stderr io.Writer) error {
	for range events {
		if err := r.Process(ctx); err != nil {
			var cerr *runner.CommandError
			if !errors.As(err, &cerr) {
				return err
			}
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		if srv != nil {
			target := r.Output
			if target == "" {
				target = r.Input
			}
			srv.NotifyReload(target)
		}
	}
	return nil
}
