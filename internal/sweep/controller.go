package sweep

import (
	"context"
	"log/slog"

	"github.com/signalnine/bgjit/internal/config"
	"github.com/signalnine/bgjit/internal/progress"
	"github.com/signalnine/bgjit/internal/result"
)

// TrialRunner measures one cell under one variant. A non-nil error means
// the result is absent.
type TrialRunner interface {
	Run(ctx context.Context, spec result.TrialSpec, v result.Variant) (*result.RawResult, error)
}

// RecordSink receives completed records in sweep order.
type RecordSink interface {
	Add(result.TrialRecord)
}

type Notifier interface {
	Emit(progress.Event)
}

// Controller walks the grid one cell at a time.
type Controller struct {
	Config   *config.SweepConfig
	Runner   TrialRunner
	Sink     RecordSink
	Progress Notifier
	Logger   *slog.Logger
}

// Outcome summarises a finished or interrupted sweep.
type Outcome struct {
	Records           []result.TrialRecord
	Total             int
	Attempted         int
	Failed            int
	SkippedPrimitives []string
	Interrupted       bool
}

// Run sweeps every cell until done or ctx is cancelled. Records already
// collected are kept on interrupt.
func (c *Controller) Run(ctx context.Context) *Outcome {
	out := &Outcome{Total: TotalCells(c.Config)}
	c.emit(progress.Event{Kind: progress.SweepStarted, Config: c.Config, Total: out.Total})

	defer func() {
		c.emit(progress.Event{
			Kind:  progress.SweepFinished,
			Total: out.Total,
			Summary: &progress.Counts{
				Attempted:   out.Attempted,
				Failed:      out.Failed,
				Records:     len(out.Records),
				Interrupted: out.Interrupted,
			},
		})
	}()

	for _, g := range Plan(c.Config) {
		if ctx.Err() != nil {
			out.Interrupted = true
			return out
		}
		if g.Skipped {
			out.SkippedPrimitives = append(out.SkippedPrimitives, g.Primitive)
			c.emit(progress.Event{Kind: progress.PrimitiveSkipped, Primitive: g.Primitive})
			continue
		}
		c.emit(progress.Event{Kind: progress.PrimitiveStarted, Primitive: g.Primitive})
		for _, n := range g.Nums {
			for _, w := range c.Config.Widths {
				if ctx.Err() != nil {
					out.Interrupted = true
					return out
				}
				spec := result.TrialSpec{Primitive: g.Primitive, Num: n, Width: w}
				out.Attempted++
				c.emit(progress.Event{Kind: progress.TrialStarted, Spec: &spec, Index: out.Attempted, Total: out.Total})

				rec, ok := c.runCell(ctx, spec)
				if ctx.Err() != nil {
					out.Interrupted = true
					return out
				}
				if !ok {
					out.Failed++
					continue
				}
				out.Records = append(out.Records, rec)
				if c.Sink != nil {
					c.Sink.Add(rec)
				}
				c.emit(progress.Event{Kind: progress.TrialCompleted, Spec: &spec, Record: &rec})
			}
		}
	}
	return out
}

// runCell runs JIT then Background. Background is not started when JIT
// produced no result.
func (c *Controller) runCell(ctx context.Context, spec result.TrialSpec) (result.TrialRecord, bool) {
	jit, ok := c.runVariant(ctx, spec, result.JIT)
	if !ok {
		return result.TrialRecord{}, false
	}
	bg, ok := c.runVariant(ctx, spec, result.Background)
	if !ok {
		return result.TrialRecord{}, false
	}
	return result.NewTrialRecord(spec, *jit, *bg), true
}

func (c *Controller) runVariant(ctx context.Context, spec result.TrialSpec, v result.Variant) (*result.RawResult, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	res, err := c.Runner.Run(ctx, spec, v)
	if err == nil && res != nil {
		return res, true
	}
	if ctx.Err() != nil {
		return nil, false
	}
	msg := "no result"
	if err != nil {
		msg = err.Error()
	}
	c.logger().Debug("variant failed", "primitive", spec.Primitive, "num", spec.Num, "width", spec.Width,
		"variant", v.String(), "error", msg)
	c.emit(progress.Event{Kind: progress.VariantFailed, Spec: &spec, Variant: v.String(), Error: msg})
	return nil, false
}

func (c *Controller) emit(e progress.Event) {
	if c.Progress != nil {
		c.Progress.Emit(e)
	}
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
