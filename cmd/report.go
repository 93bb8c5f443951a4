package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/signalnine/bgjit/internal/report"
	"github.com/signalnine/bgjit/internal/result"
)

type reportFlags struct {
	format string
	html   string
	png    string
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Summarize a stored run's CSV report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			runDir := filepath.Join(cfg.Results.Dir, "latest")
			if len(args) > 0 {
				runDir = args[0]
			}
			resolved, err := filepath.EvalSymlinks(runDir)
			if err != nil {
				return fmt.Errorf("resolving run dir: %w", err)
			}
			return renderRun(cmd, resolved, &f)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", "table", "output format (table, markdown, json)")
	cmd.Flags().StringVar(&f.html, "html", "", "also write an HTML chart page to this path")
	cmd.Flags().StringVar(&f.png, "png", "", "also write a PNG ratio chart to this path")
	return cmd
}

func renderRun(cmd *cobra.Command, runDir string, f *reportFlags) error {
	path, err := result.FindReport(runDir)
	if err != nil {
		return err
	}
	info, records, err := result.ReadReportFile(path)
	if err != nil {
		return err
	}
	s, err := report.Summarize(records)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := report.Write(f.format, s, records, cmd.OutOrStdout()); err != nil {
		return err
	}
	if f.html != "" {
		out, err := os.Create(f.html)
		if err != nil {
			return err
		}
		herr := report.RenderHTML("Background vs JIT "+info.Stamp, records, out)
		if cerr := out.Close(); herr == nil {
			herr = cerr
		}
		if herr != nil {
			return fmt.Errorf("writing %s: %w", f.html, herr)
		}
	}
	if f.png != "" {
		if err := report.RenderPNG(s, f.png); err != nil {
			return fmt.Errorf("writing %s: %w", f.png, err)
		}
	}
	return nil
}
