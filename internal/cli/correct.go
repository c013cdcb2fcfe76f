package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/swordhydro/facc/internal/config"
	"github.com/swordhydro/facc/internal/graph"
	"github.com/swordhydro/facc/internal/lint"
	"github.com/swordhydro/facc/internal/pipeline"
	"github.com/swordhydro/facc/internal/report"
	"github.com/swordhydro/facc/internal/river"
	"github.com/swordhydro/facc/internal/store"
)

// CorrectOptions holds flags for the correct command.
type CorrectOptions struct {
	*RootOptions
	Database    string
	Region      string
	All         bool
	ConfigFile  string
	ChainTol    float64
	JunctionTol float64
	MaxResidual int
	DryRun      bool
}

// NewCorrectCommand creates the correct command.
func NewCorrectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CorrectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Run the facc correction pipeline",
		Long: `Run the two-stage facc correction pipeline over one region or all
regions in the database.

Each region is corrected independently: graph build, baseline cleaning,
topological propagation, safety nets, diagnostics. Output is written in
one transaction per region; a region whose topology contains a cycle
aborts with no output. After a non-dry run the oracle invariant checks
are re-run against the persisted values.

Example:
  facc correct --db ./sword.db --region NA
  facc correct --db ./sword.db --all --dry-run
  facc correct --db ./sword.db --region EU --junction-tol 0.5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "region to correct (e.g. NA)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "correct every region in the database")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to YAML run configuration")
	cmd.Flags().Float64Var(&opts.ChainTol, "chain-tol", config.DefaultChainTolerance,
		"relative chain monotonicity tolerance")
	cmd.Flags().Float64Var(&opts.JunctionTol, "junction-tol", config.DefaultJunctionToleranceKm2,
		"absolute junction conservation tolerance (km²)")
	cmd.Flags().IntVar(&opts.MaxResidual, "max-residual", config.DefaultMaxResidualViolations,
		"max residual violations before the run fails")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false,
		"compute and record corrections without updating reach facc values")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCorrect(opts *CorrectOptions, cmd *cobra.Command) error {
	cfg, err := loadRunConfig(opts, cmd)
	if err != nil {
		return err
	}

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
	regions, err := selectRegions(ctx, st, opts.Region, opts.All, cfg)
	if err != nil {
		return err
	}

	datasets := make([]*river.Dataset, 0, len(regions))
	for _, region := range regions {
		slog.Info("loading region", "region", region)
		ds, loadErr := st.LoadDataset(ctx, region)
		if loadErr != nil {
			return WrapExitError(ExitCommandError, "failed to load region", loadErr)
		}
		datasets = append(datasets, ds)
	}

	runner := pipeline.New(cfg)
	results, regionErrs := runner.RunAll(ctx, datasets)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	failed := false

	for _, region := range regions {
		if regionErr := regionErrs[region]; regionErr != nil {
			failed = true
			if graph.IsCycleError(regionErr) {
				// Fatal for the region: nothing is written.
				slog.Error("region aborted", "region", region, "error", regionErr)
				formatter.Failure(regionErr.Error())
				continue
			}
			if pipeline.IsResidualError(regionErr) {
				// Completed but above the residual threshold: report,
				// do not persist.
				slog.Error("region exceeded residual threshold", "region", region, "error", regionErr)
				formatter.Failure(regionErr.Error())
				if res := results[region]; res != nil {
					emitReport(formatter, report.Build(res))
				}
				continue
			}
			return WrapExitError(ExitCommandError, "correction failed", regionErr)
		}

		res := results[region]
		if err := st.WriteResult(ctx, res, opts.DryRun); err != nil {
			return WrapExitError(ExitCommandError, "failed to write result", err)
		}
		slog.Info("region corrected", "region", region, "run_id", res.RunID,
			"reaches", res.Dataset.Len(), "residual", len(res.Violations), "dry_run", opts.DryRun)

		rep := report.Build(res)
		emitReport(formatter, rep)

		if !opts.DryRun {
			oracle, oracleErr := lint.CheckAll(ctx, st, region, cfg.ChainTolerance, cfg.JunctionToleranceKm2)
			if oracleErr != nil {
				return WrapExitError(ExitCommandError, "oracle checks failed to run", oracleErr)
			}
			if len(oracle) > 0 {
				failed = true
				for _, v := range oracle {
					formatter.Failure(fmt.Sprintf("oracle %s: reach %d facc %.3f below required %.3f",
						v.Check, v.ReachID, v.Facc, v.Required))
				}
			}
		}
	}

	if failed {
		return NewExitError(ExitFailure, "correction finished with failures")
	}
	return nil
}

// loadRunConfig merges the config file (or defaults) with explicit flag
// overrides. A flag the user set always wins over the file.
func loadRunConfig(opts *CorrectOptions, cmd *cobra.Command) (config.Run, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return config.Run{}, WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("chain-tol") {
		cfg.ChainTolerance = opts.ChainTol
	}
	if flags.Changed("junction-tol") {
		cfg.JunctionToleranceKm2 = opts.JunctionTol
	}
	if flags.Changed("max-residual") {
		cfg.MaxResidualViolations = opts.MaxResidual
	}
	return cfg, nil
}

// selectRegions resolves the --region/--all flags against the database
// and the configured region list.
func selectRegions(ctx context.Context, st *store.Store, region string, all bool, cfg config.Run) ([]string, error) {
	switch {
	case region != "" && all:
		return nil, NewExitError(ExitCommandError, "--region and --all are mutually exclusive")
	case region != "":
		return []string{region}, nil
	case all:
		if len(cfg.Regions) > 0 {
			return cfg.Regions, nil
		}
		regions, err := st.Regions(ctx)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to list regions", err)
		}
		if len(regions) == 0 {
			return nil, NewExitError(ExitCommandError, "database contains no regions")
		}
		return regions, nil
	default:
		return nil, NewExitError(ExitCommandError, "one of --region or --all is required")
	}
}

func emitReport(f *OutputFormatter, rep *report.Report) {
	if f.Format == "json" {
		_ = f.Success(rep)
		return
	}
	_ = rep.WriteText(f.Writer)
}
