package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/trophycase/internal/engine"
)

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	*RootOptions
	storeFlags
	History string
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a single evaluation cycle",
		Long: `Run one evaluation cycle and print what it recorded.

With --history the cycle reads a recorded activity file instead of the
stats service, and Discord delivery is skipped. Awards are still written
to the ledger, so running twice records nothing new the second time.

Example:
  trophycase evaluate
  trophycase evaluate --history ./history.yaml --db /tmp/replay.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (overrides STATE_DB_PATH)")
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "path to the achievement definitions (overrides ACHIEVEMENTS_PATH)")
	cmd.Flags().StringVar(&opts.History, "history", "", "evaluate a recorded activity file (YAML or JSON)")

	return cmd
}

func runEvaluate(opts *EvaluateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.Logger()

	cfg, err := loadConfig(opts.RootOptions, opts.storeFlags)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	svc, err := wire(cfg, logger, wireOptions{history: opts.History, offline: opts.History != ""})
	if err != nil {
		code := ErrCodeLedger
		if opts.History != "" {
			code = ErrCodeSource
		}
		_ = formatter.Error(code, err.Error(), nil)
		return err
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			logger.Error("error closing ledger", "error", closeErr)
		}
	}()

	formatter.VerboseLog("Evaluating %s against %s", cfg.AchievementsPath, cfg.StateDBPath)

	report, err := svc.engine.RunOnce(cmd.Context())
	if err != nil {
		var cerr *engine.CycleError
		if errors.As(err, &cerr) {
			_ = formatter.Error(ErrCodeCycle, cerr.Error(), string(cerr.Code))
		} else {
			_ = formatter.Error(ErrCodeCycle, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "evaluation cycle aborted", err)
	}

	view := newCycleView(report)
	if len(report.Failures) > 0 {
		_ = formatter.Error(ErrCodeCycle, fmt.Sprintf("%d user(s) not fully evaluated", len(report.Failures)), view)
		return NewExitError(ExitFailure, "evaluation incomplete")
	}
	return formatter.Success(view)
}
