package cmd

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/signalnine/bgjit/internal/config"
	"github.com/signalnine/bgjit/internal/lifecycle"
)

// ErrInterrupted is returned by the sweep when an operator interrupt stopped
// it early. The partial report has already been written.
var ErrInterrupted = errors.New("sweep interrupted")

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInterrupted):
		return lifecycle.ExitInterrupted
	default:
		return 1
	}
}

type rootOptions struct {
	cfgFile string
	verbose bool
	sweep   sweepFlags

	// exit replaces os.Exit on a second interrupt; nil keeps the default.
	exit func(int)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "bgjit",
		Short: "Sweep MPC primitives comparing background and JIT worker timings",
		Long: `bgjit runs every (primitive, operand count, bit width) cell once with the JIT
worker and once with the background worker, then writes a CSV comparing the two.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, args, opts)
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file overlaid on the defaults")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")
	opts.sweep.register(root)

	root.AddCommand(newReportCmd(opts))
	root.AddCommand(newRunsCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	return root
}

// loadConfig reads --config when given, the defaults otherwise.
func loadConfig(opts *rootOptions) (*config.SweepConfig, error) {
	if opts.cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(opts.cfgFile)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
