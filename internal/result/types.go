package result

import (
	"fmt"
	"math"
	"time"
)

// Variant selects which worker executable measures a cell.
type Variant int

const (
	JIT Variant = iota
	Background
)

func (v Variant) String() string {
	switch v {
	case JIT:
		return "jit"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Label is the capitalised form used in progress output.
func (v Variant) Label() string {
	switch v {
	case JIT:
		return "JIT"
	case Background:
		return "Background"
	default:
		return v.String()
	}
}

// TrialSpec identifies one grid cell.
type TrialSpec struct {
	Primitive string `json:"primitive"`
	Num       int    `json:"num"`
	Width     int    `json:"width"`
}

func (s TrialSpec) String() string {
	return fmt.Sprintf("%s, num=%d, width=%d", s.Primitive, s.Num, s.Width)
}

// RawResult is the timing tuple a worker reports, in milliseconds.
type RawResult struct {
	Time0   float64 `json:"time0_ms"`
	Time1   float64 `json:"time1_ms"`
	AvgTime float64 `json:"avg_time_ms"`
}

// TrialRecord is a cell for which both variants reported a result.
type TrialRecord struct {
	Spec                   TrialSpec `json:"spec"`
	JIT                    RawResult `json:"jit"`
	Background             RawResult `json:"background"`
	BackgroundToJITRatio   float64   `json:"background_to_jit_ratio"`
	JITToBackgroundSpeedup float64   `json:"jit_to_background_speedup"`
}

// NewTrialRecord pairs the two results of a cell and derives its ratios.
func NewTrialRecord(spec TrialSpec, jit, bg RawResult) TrialRecord {
	return TrialRecord{
		Spec:                   spec,
		JIT:                    jit,
		Background:             bg,
		BackgroundToJITRatio:   ratio(bg.AvgTime, jit.AvgTime),
		JITToBackgroundSpeedup: ratio(jit.AvgTime, bg.AvgTime),
	}
}

// ratio is num/den, or 0 when that is not a finite non-negative number.
func ratio(num, den float64) float64 {
	if !(den > 0) {
		return 0
	}
	q := num / den
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
		return 0
	}
	return q
}

// RunMeta describes one sweep run on disk.
type RunMeta struct {
	SweepID           string    `json:"sweep_id"`
	Stamp             string    `json:"stamp"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Host              string    `json:"host"`
	BatchSize         int       `json:"batch_size"`
	EngineRevision    string    `json:"engine_revision,omitempty"`
	TotalCells        int       `json:"total_cells"`
	AttemptedCells    int       `json:"attempted_cells"`
	FailedCells       int       `json:"failed_cells"`
	Records           int       `json:"records"`
	SkippedPrimitives []string  `json:"skipped_primitives,omitempty"`
	Interrupted       bool      `json:"interrupted"`
	Config            any       `json:"config,omitempty"`
}
