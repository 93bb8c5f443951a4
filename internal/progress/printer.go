package progress

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalnine/bgjit/internal/result"
)

// Printer renders events as the human-readable sweep log.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Publish(e Event) {
	switch e.Kind {
	case SweepStarted:
		if e.Config == nil {
			return
		}
		c := e.Config
		host := c.Host
		if host == "" {
			host = result.LocalHost
		}
		fmt.Fprintf(p.w, "Running benchmark with:\n")
		fmt.Fprintf(p.w, "  Non-sort operations data sizes: %s\n", formatInts(c.Nums))
		fmt.Fprintf(p.w, "  Sort operations data sizes: %s\n", formatInts(c.SortNums))
		fmt.Fprintf(p.w, "  Bit widths: %s\n", formatInts(c.Widths))
		fmt.Fprintf(p.w, "  Primitives: %s\n", formatStrings(c.Primitives))
		fmt.Fprintf(p.w, "  Host: %s\n", host)
		fmt.Fprintf(p.w, "  Batch size: %d\n", c.BatchSize)
	case PrimitiveSkipped:
		fmt.Fprintf(p.w, "\nSkipping primitive: %s (data size contains 0)\n", e.Primitive)
	case PrimitiveStarted:
		fmt.Fprintf(p.w, "\nTesting primitive: %s\n", e.Primitive)
	case TrialStarted:
		if e.Spec != nil {
			fmt.Fprintf(p.w, "Progress: %d/%d - Testing %s\n", e.Index, e.Total, e.Spec)
		}
	case VariantFailed:
		label := e.Variant
		if label == result.JIT.String() {
			label = result.JIT.Label()
		} else if label == result.Background.String() {
			label = result.Background.Label()
		}
		fmt.Fprintf(p.w, "  %s test failed, skipping...\n", label)
	case TrialCompleted:
		if r := e.Record; r != nil {
			fmt.Fprintf(p.w, "  JIT: %.2fms, Background: %.2fms, Ratio: %.4f\n",
				r.JIT.AvgTime, r.Background.AvgTime, r.BackgroundToJITRatio)
		}
	case SweepFinished:
		if e.Summary != nil && e.Summary.Interrupted {
			fmt.Fprintf(p.w, "\nSweep interrupted after %d of %d cells.\n", e.Summary.Attempted, e.Total)
		}
	}
}

func formatInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatStrings(vs []string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = "'" + v + "'"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
