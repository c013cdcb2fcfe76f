package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swordhydro/facc/internal/store"
)

// RegionsOptions holds flags for the regions command.
type RegionsOptions struct {
	*RootOptions
	Database string
}

// NewRegionsCommand creates the regions command.
func NewRegionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "regions",
		Short:         "List the regions present in the database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRegions(opts *RegionsOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	regions, err := st.Regions(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list regions", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(regions)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(regions, "\n"))
	return nil
}
