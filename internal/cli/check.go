package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/swordhydro/facc/internal/config"
	"github.com/swordhydro/facc/internal/lint"
	"github.com/swordhydro/facc/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Database    string
	Region      string
	All         bool
	ChainTol    float64
	JunctionTol float64
}

// NewCheckCommand creates the check command: the detect-only surface.
// It runs the oracle invariant checks against the stored facc values
// without computing or writing any corrections.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the invariant checks without correcting",
		Long: `Run the two oracle invariant checks — chain monotonicity and junction
conservation — against the facc values currently stored in the database.

Exit status is 0 when both checks pass, 1 when violations exist.

Example:
  facc check --db ./sword.db --region NA
  facc check --db ./sword.db --all --chain-tol 0.90`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "region to check (e.g. NA)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "check every region in the database")
	cmd.Flags().Float64Var(&opts.ChainTol, "chain-tol", config.DefaultChainTolerance,
		"relative chain monotonicity tolerance")
	cmd.Flags().Float64Var(&opts.JunctionTol, "junction-tol", config.DefaultJunctionToleranceKm2,
		"absolute junction conservation tolerance (km²)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	regions, err := selectRegions(ctx, st, opts.Region, opts.All, config.Default())
	if err != nil {
		return err
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	total := 0
	for _, region := range regions {
		violations, checkErr := lint.CheckAll(ctx, st, region, opts.ChainTol, opts.JunctionTol)
		if checkErr != nil {
			return WrapExitError(ExitCommandError, "checks failed to run", checkErr)
		}
		slog.Info("region checked", "region", region, "violations", len(violations))
		total += len(violations)
		if opts.Format == "json" {
			formatter.Success(map[string]any{
				"region":     region,
				"violations": violations,
			})
			continue
		}
		if len(violations) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "region %s: ok\n", region)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "region %s: %d violations\n", region, len(violations))
		for _, v := range violations {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: reach %d facc %.3f below required %.3f\n",
				v.Check, v.ReachID, v.Facc, v.Required)
		}
	}

	if total > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invariant violations", total))
	}
	return nil
}
