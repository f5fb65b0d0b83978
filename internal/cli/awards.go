package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/trophycase/internal/ledger"
)

// AwardsOptions holds flags for the awards command.
type AwardsOptions struct {
	*RootOptions
	Database string
	User     string
	Cycles   int
}

// NewAwardsCommand creates the awards command.
func NewAwardsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AwardsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "awards",
		Short: "List recorded awards or journaled cycles",
		Long: `List awards from the ledger in the order they were earned.

With --cycles N the most recent N evaluation cycles are listed instead.

Example:
  trophycase awards --user 9c1f
  trophycase awards --cycles 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAwards(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (overrides STATE_DB_PATH)")
	cmd.Flags().StringVar(&opts.User, "user", "", "only awards for this user id")
	cmd.Flags().IntVar(&opts.Cycles, "cycles", 0, "list the N most recent cycles instead of awards")

	return cmd
}

func runAwards(opts *AwardsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.RootOptions, storeFlags{Database: opts.Database})
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	st, err := ledger.Open(cfg.StateDBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if opts.Cycles > 0 {
		cycles, err := st.ListCycles(ctx, opts.Cycles)
		if err != nil {
			_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read cycles", err)
		}
		return formatter.Success(newCycleList(cycles))
	}

	awards, err := st.ListAwards(ctx, opts.User)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read awards", err)
	}
	return formatter.Success(awardList{Awards: newAwardViews(awards)})
}
