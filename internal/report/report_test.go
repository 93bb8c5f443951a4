package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/bgjit/internal/report"
	"github.com/signalnine/bgjit/internal/result"
)

func sampleRecords() []result.TrialRecord {
	return []result.TrialRecord{
		result.NewTrialRecord(result.TrialSpec{Primitive: "==", Num: 10, Width: 8},
			result.RawResult{Time0: 1, Time1: 2, AvgTime: 1.5},
			result.RawResult{Time0: 0.5, Time1: 1.5, AvgTime: 1}),
		result.NewTrialRecord(result.TrialSpec{Primitive: "==", Num: 10, Width: 16},
			result.RawResult{Time0: 2, Time1: 2, AvgTime: 2},
			result.RawResult{Time0: 4, Time1: 4, AvgTime: 4}),
		result.NewTrialRecord(result.TrialSpec{Primitive: "sort", Num: 500, Width: 8},
			result.RawResult{Time0: 10, Time1: 10, AvgTime: 10},
			result.RawResult{Time0: 5, Time1: 5, AvgTime: 5}),
	}
}

func TestFinalizeEmpty(t *testing.T) {
	_, err := report.NewAggregator().Finalize()
	if !errors.Is(err, report.ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestFinalizeMeans(t *testing.T) {
	agg := report.NewAggregator()
	for _, r := range sampleRecords() {
		agg.Add(r)
	}
	if agg.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", agg.Len())
	}
	s, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if s.Count != 3 {
		t.Errorf("count: got %d", s.Count)
	}
	if diff := s.MeanJIT - 13.5/3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("mean jit: got %f", s.MeanJIT)
	}
	// Mean of ratios (0.6667, 2, 0.5), not ratio of means.
	wantRatio := (1.0/1.5 + 2 + 0.5) / 3
	if diff := s.MeanRatio - wantRatio; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("mean ratio: got %f, want %f", s.MeanRatio, wantRatio)
	}
	if len(s.Primitives) != 2 || s.Primitives[0].Primitive != "==" || s.Primitives[1].Primitive != "sort" {
		t.Fatalf("unexpected primitive breakdown %+v", s.Primitives)
	}
	if s.Primitives[0].Count != 2 || s.Primitives[0].MeanBackground != 2.5 {
		t.Errorf("unexpected == summary %+v", s.Primitives[0])
	}
}

func TestRecordsPreserveArrivalOrder(t *testing.T) {
	agg := report.NewAggregator()
	recs := sampleRecords()
	for i := len(recs) - 1; i >= 0; i-- {
		agg.Add(recs[i])
	}
	got := agg.Records()
	if got[0].Spec.Primitive != "sort" || got[2].Spec.Width != 8 {
		t.Errorf("records reordered: %+v", got)
	}
	got[0].Spec.Primitive = "mutated"
	if agg.Records()[0].Spec.Primitive != "sort" {
		t.Error("Records exposes internal storage")
	}
}

func TestWriteFormats(t *testing.T) {
	recs := sampleRecords()
	s, err := report.Summarize(recs)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	tests := []struct {
		format string
		ratio  string
	}{
		{"table", "0.6667"},
		{"markdown", "0.6667"},
		{"json", "0.6666"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := report.Write(tt.format, s, recs, &buf); err != nil {
				t.Fatalf("Write: %v", err)
			}
			out := buf.String()
			if !strings.Contains(out, "sort") || !strings.Contains(out, tt.ratio) {
				t.Errorf("missing content in %s output:\n%s", tt.format, out)
			}
		})
	}
	if err := report.Write("yaml", s, recs, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteJSONShape(t *testing.T) {
	recs := sampleRecords()
	s, _ := report.Summarize(recs)
	var buf bytes.Buffer
	if err := report.WriteJSON(s, recs, &buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded struct {
		Summary report.Summary       `json:"summary"`
		Records []result.TrialRecord `json:"records"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if decoded.Summary.Count != 3 || len(decoded.Records) != 3 {
		t.Errorf("unexpected decoded report %+v", decoded.Summary)
	}
}

func TestWriteJSONDegenerateAverages(t *testing.T) {
	recs := []result.TrialRecord{
		result.NewTrialRecord(result.TrialSpec{Primitive: "==", Num: 10, Width: 8},
			result.RawResult{AvgTime: 1e-310}, result.RawResult{AvgTime: 1}),
		result.NewTrialRecord(result.TrialSpec{Primitive: "==", Num: 10, Width: 16},
			result.RawResult{AvgTime: 0}, result.RawResult{AvgTime: 2}),
	}
	s, err := report.Summarize(recs)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	var buf bytes.Buffer
	if err := report.WriteJSON(s, recs, &buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Errorf("invalid JSON:\n%s", buf.String())
	}
}

func TestWriteCompletion(t *testing.T) {
	s, _ := report.Summarize(sampleRecords()[:1])
	var buf bytes.Buffer
	report.WriteCompletion(&buf, s, "results/runs/x/benchmark_bg_vs_jit_x.csv")
	want := "\nBenchmark completed! Results saved to: results/runs/x/benchmark_bg_vs_jit_x.csv\n" +
		"Total tests executed: 1\n" +
		"Average JIT time: 1.50ms\n" +
		"Average Background time: 1.00ms\n" +
		"Average Background/JIT ratio: 0.6667\n"
	if buf.String() != want {
		t.Errorf("completion output:\n got %q\nwant %q", buf.String(), want)
	}
}

func TestGenerateFromRunDir(t *testing.T) {
	runDir := t.TempDir()
	info := result.ReportInfo{Stamp: "20250101_000000", BatchSize: 1000}
	if _, err := result.WriteReportFile(runDir, info, sampleRecords()); err != nil {
		t.Fatalf("WriteReportFile: %v", err)
	}
	var buf bytes.Buffer
	if err := report.Generate(runDir, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(buf.String(), "ALL") {
		t.Errorf("expected overall row in table:\n%s", buf.String())
	}
	if err := report.Generate(t.TempDir(), "table", &buf); err == nil {
		t.Error("expected error for run dir without report")
	}
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := report.RenderHTML("run 1", sampleRecords(), &buf); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(buf.String(), "echarts") {
		t.Error("expected echarts page")
	}
	if err := report.RenderHTML("empty", nil, &buf); !errors.Is(err, report.ErrNoRecords) {
		t.Errorf("expected ErrNoRecords, got %v", err)
	}
}

func TestRenderPNG(t *testing.T) {
	s, _ := report.Summarize(sampleRecords())
	path := filepath.Join(t.TempDir(), "ratio.png")
	if err := report.RenderPNG(s, path); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading png: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}
