package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	storeFlags
	Interval time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate achievements on a fixed interval",
		Long: `Start the evaluation loop.

A cycle runs immediately and then once per poll interval until the process
receives SIGINT or SIGTERM. A failed cycle is journaled and retried at the
next tick; awards recorded before the failure are kept.

Example:
  trophycase run
  trophycase run --db ./state.db --rules ./achievements.json --interval 1m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (overrides STATE_DB_PATH)")
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "path to the achievement definitions (overrides ACHIEVEMENTS_PATH)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between cycles (overrides POLL_SECONDS)")

	return cmd
}

func runLoop(opts *RunOptions, cmd *cobra.Command) error {
	logger := opts.Logger()

	cfg, err := loadConfig(opts.RootOptions, opts.storeFlags)
	if err != nil {
		return err
	}
	if opts.Interval < 0 {
		return NewExitError(ExitCommandError, "interval must not be negative")
	}
	if opts.Interval > 0 {
		cfg.Engine.PollSeconds = max(1, int(opts.Interval/time.Second))
	}

	svc, err := wire(cfg, logger, wireOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			logger.Error("error closing ledger", "error", closeErr)
		}
	}()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("trophycase starting",
		"stats", cfg.Stats.BaseURL,
		"db", cfg.StateDBPath,
		"rules", cfg.AchievementsPath,
		"interval", cfg.PollInterval().String(),
		"timezone", cfg.Engine.Timezone,
		"discord", cfg.Discord.ProxyURL != "",
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Press Ctrl-C to stop.")

	if err := svc.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	logger.Info("engine stopped gracefully")
	return nil
}
