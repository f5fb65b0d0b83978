package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/trophycase/internal/rules"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [definitions-file]",
		Short: "Check an achievement definitions document",
		Long: `Load an achievement definitions document and report every entry the
engine would skip: schema violations, duplicate ids, unknown categories and
triggers that do not fit their category's grammar.

Without an argument the configured ACHIEVEMENTS_PATH is checked. Exits 1
when any entry has an issue and 2 when the document cannot be read.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if path == "" {
		cfg, err := loadConfig(opts, storeFlags{})
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return err
		}
		path = cfg.AchievementsPath
	}

	formatter.VerboseLog("Validating %s", path)

	rs, err := rules.LoadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeRules, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}

	result := validationResult{
		Path:        path,
		Version:     rs.Version,
		Definitions: len(rs.Definitions),
		Active:      len(rs.Active),
		Issues:      rs.Issues,
	}
	if len(rs.Issues) > 0 {
		_ = formatter.Error(ErrCodeRules, fmt.Sprintf("%d definition(s) have issues", len(rs.Issues)), result)
		return NewExitError(ExitFailure, "validation failed")
	}
	return formatter.Success(result)
}
