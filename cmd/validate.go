package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/bgjit/internal/result"
	"github.com/signalnine/bgjit/internal/sweep"
	"github.com/signalnine/bgjit/internal/worker"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config and worker executables without running trials",
		Long: `Loads the config with the same flag overrides as a sweep, validates it, checks
that both worker executables exist, and prints the sweep plan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			opts.sweep.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var errs []error
			if cfg.Docker.Image == "" {
				inv := worker.NewInvocation(cfg)
				for _, v := range []result.Variant{result.JIT, result.Background} {
					exe := inv.Executable(v)
					if _, err := os.Stat(exe); err != nil {
						errs = append(errs, fmt.Errorf("%s worker: %w", v, err))
						continue
					}
					fmt.Fprintf(out, "%s worker: %s\n", v.Label(), exe)
				}
			} else {
				fmt.Fprintf(out, "Workers run in container image %s\n", cfg.Docker.Image)
			}

			for _, g := range sweep.Plan(cfg) {
				if g.Skipped {
					fmt.Fprintf(out, "  %-4s skipped\n", g.Primitive)
					continue
				}
				fmt.Fprintf(out, "  %-4s %d nums x %d widths\n", g.Primitive, len(g.Nums), len(cfg.Widths))
			}
			fmt.Fprintf(out, "Total cells: %d (%d worker runs)\n", sweep.TotalCells(cfg), 2*sweep.TotalCells(cfg))
			return errors.Join(errs...)
		},
	}
	opts.sweep.register(cmd)
	return cmd
}
