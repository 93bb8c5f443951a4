package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/bgjit/internal/result"
)

// Generate reads the CSV report stored in runDir and renders it.
func Generate(runDir, format string, w io.Writer) error {
	path, err := result.FindReport(runDir)
	if err != nil {
		return err
	}
	_, records, err := result.ReadReportFile(path)
	if err != nil {
		return err
	}
	summary, err := Summarize(records)
	if err != nil {
		return err
	}
	return Write(format, summary, records, w)
}

// Write renders records and their summary as table, markdown or json.
func Write(format string, s *Summary, records []result.TrialRecord, w io.Writer) error {
	switch format {
	case "markdown":
		return WriteMarkdown(s, records, w)
	case "json":
		return WriteJSON(s, records, w)
	case "table", "":
		return WriteTable(s, records, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func WriteTable(s *Summary, records []result.TrialRecord, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIMITIVE\tNUM\tWIDTH\tJIT AVG\tBG AVG\tBG/JIT\tJIT/BG")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2fms\t%.2fms\t%.4f\t%.4f\n",
			r.Spec.Primitive, r.Spec.Num, r.Spec.Width,
			r.JIT.AvgTime, r.Background.AvgTime, r.BackgroundToJITRatio, r.JITToBackgroundSpeedup)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PRIMITIVE\tTRIALS\tMEAN JIT\tMEAN BG\tMEAN BG/JIT")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, p := range s.Primitives {
		fmt.Fprintf(tw, "%s\t%d\t%.2fms\t%.2fms\t%.4f\n",
			p.Primitive, p.Count, p.MeanJIT, p.MeanBackground, p.MeanRatio)
	}
	fmt.Fprintf(tw, "ALL\t%d\t%.2fms\t%.2fms\t%.4f\n", s.Count, s.MeanJIT, s.MeanBackground, s.MeanRatio)
	return tw.Flush()
}

func WriteMarkdown(s *Summary, records []result.TrialRecord, w io.Writer) error {
	fmt.Fprintln(w, "| Primitive | Num | Width | JIT avg (ms) | Background avg (ms) | BG/JIT | JIT/BG |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, r := range records {
		fmt.Fprintf(w, "| %s | %d | %d | %.2f | %.2f | %.4f | %.4f |\n",
			r.Spec.Primitive, r.Spec.Num, r.Spec.Width,
			r.JIT.AvgTime, r.Background.AvgTime, r.BackgroundToJITRatio, r.JITToBackgroundSpeedup)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Primitive | Trials | Mean JIT (ms) | Mean Background (ms) | Mean BG/JIT |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, p := range s.Primitives {
		fmt.Fprintf(w, "| %s | %d | %.2f | %.2f | %.4f |\n",
			p.Primitive, p.Count, p.MeanJIT, p.MeanBackground, p.MeanRatio)
	}
	fmt.Fprintf(w, "| **all** | %d | %.2f | %.2f | %.4f |\n", s.Count, s.MeanJIT, s.MeanBackground, s.MeanRatio)
	return nil
}

func WriteJSON(s *Summary, records []result.TrialRecord, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary *Summary             `json:"summary"`
		Records []result.TrialRecord `json:"records"`
	}{s, records})
}

// WriteCompletion prints the end-of-sweep summary.
func WriteCompletion(w io.Writer, s *Summary, reportPath string) {
	fmt.Fprintf(w, "\nBenchmark completed! Results saved to: %s\n", reportPath)
	fmt.Fprintf(w, "Total tests executed: %d\n", s.Count)
	fmt.Fprintf(w, "Average JIT time: %.2fms\n", s.MeanJIT)
	fmt.Fprintf(w, "Average Background time: %.2fms\n", s.MeanBackground)
	fmt.Fprintf(w, "Average Background/JIT ratio: %.4f\n", s.MeanRatio)
}
