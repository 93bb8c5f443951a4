package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/bgjit/internal/report"
	"github.com/signalnine/bgjit/internal/store"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "runs [sweep-id]",
		Short: "List recorded sweeps, or summarize one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Results.DB = dbPath
			}
			if cfg.Results.DB == "" {
				return fmt.Errorf("no sweep database configured (set --db or results.db)")
			}
			db, err := store.Open(cfg.Results.DB, newLogger(cmd.ErrOrStderr(), opts.verbose))
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				records, err := db.Trials(ctx, args[0])
				if err != nil {
					return err
				}
				if len(records) == 0 {
					if _, err := db.GetSweep(ctx, args[0]); err != nil {
						return err
					}
				}
				s, err := report.Summarize(records)
				if err != nil {
					return fmt.Errorf("sweep %s: %w", args[0], err)
				}
				return report.Write(format, s, records, cmd.OutOrStdout())
			}

			sweeps, err := db.ListSweeps(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tHOST\tCELLS\tRECORDS\tFAILED\tSTATUS\tREVISION")
			for _, sw := range sweeps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\t%s\n",
					sw.ID, sw.StartedAt.Local().Format(time.DateTime), hostOrLocal(sw.Host),
					sw.AttemptedCells, sw.TotalCells, sw.Records, sw.FailedCells, sweepStatus(sw), sw.EngineRevision)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default results.db from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sweeps to list (0 for all)")
	cmd.Flags().StringVar(&format, "format", "table", "output format for a single sweep (table, markdown, json)")
	return cmd
}

func sweepStatus(sw store.Sweep) string {
	switch {
	case sw.FinishedAt.IsZero():
		return "running"
	case sw.Interrupted:
		return "interrupted"
	default:
		return "done"
	}
}

func hostOrLocal(h string) string {
	if h == "" {
		return "localhost"
	}
	return h
}
