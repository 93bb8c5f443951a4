package report

import (
	"errors"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/signalnine/bgjit/internal/result"
)

// ErrNoRecords is returned by Finalize when no trial succeeded.
var ErrNoRecords = errors.New("no successful tests completed")

// Aggregator accumulates records in arrival order.
type Aggregator struct {
	mu      sync.Mutex
	records []result.TrialRecord
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Add(r result.TrialRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
}

// Records returns a copy of the accumulated records.
func (a *Aggregator) Records() []result.TrialRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]result.TrialRecord, len(a.records))
	copy(out, a.records)
	return out
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Finalize computes the run summary.
func (a *Aggregator) Finalize() (*Summary, error) {
	return Summarize(a.Records())
}

// Summary holds simple arithmetic means over a set of records.
// MeanRatio is the mean of per-record ratios, not the ratio of means.
type Summary struct {
	Count          int                `json:"count"`
	MeanJIT        float64            `json:"mean_jit_ms"`
	MeanBackground float64            `json:"mean_background_ms"`
	MeanRatio      float64            `json:"mean_background_to_jit_ratio"`
	Primitives     []PrimitiveSummary `json:"primitives"`
}

type PrimitiveSummary struct {
	Primitive      string  `json:"primitive"`
	Count          int     `json:"count"`
	MeanJIT        float64 `json:"mean_jit_ms"`
	MeanBackground float64 `json:"mean_background_ms"`
	MeanRatio      float64 `json:"mean_background_to_jit_ratio"`
}

// Summarize returns ErrNoRecords for an empty slice. Primitives appear in
// first-seen order.
func Summarize(records []result.TrialRecord) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	jit, bg, ratio := columns(records)
	s := &Summary{
		Count:          len(records),
		MeanJIT:        stat.Mean(jit, nil),
		MeanBackground: stat.Mean(bg, nil),
		MeanRatio:      stat.Mean(ratio, nil),
	}

	var order []string
	byPrimitive := map[string][]result.TrialRecord{}
	for _, r := range records {
		p := r.Spec.Primitive
		if _, ok := byPrimitive[p]; !ok {
			order = append(order, p)
		}
		byPrimitive[p] = append(byPrimitive[p], r)
	}
	for _, p := range order {
		rs := byPrimitive[p]
		jit, bg, ratio := columns(rs)
		s.Primitives = append(s.Primitives, PrimitiveSummary{
			Primitive:      p,
			Count:          len(rs),
			MeanJIT:        stat.Mean(jit, nil),
			MeanBackground: stat.Mean(bg, nil),
			MeanRatio:      stat.Mean(ratio, nil),
		})
	}
	return s, nil
}

func columns(records []result.TrialRecord) (jit, bg, ratio []float64) {
	jit = make([]float64, len(records))
	bg = make([]float64, len(records))
	ratio = make([]float64, len(records))
	for i, r := range records {
		jit[i] = r.JIT.AvgTime
		bg[i] = r.Background.AvgTime
		ratio[i] = r.BackgroundToJITRatio
	}
	return jit, bg, ratio
}
