package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// StampLayout formats run timestamps in directory names and report rows.
const StampLayout = "20060102_150405"

// LocalHost is written in the Host column when no placement spec was given.
const LocalHost = "localhost"

// ReportHeader is the column layout of the CSV report.
var ReportHeader = []string{
	"Timestamp", "Primitive", "NumElements", "Width", "BatchSize", "Host",
	"JIT_Time0_ms", "JIT_Time1_ms", "AvgJitTime_ms",
	"BG_Time0_ms", "BG_Time1_ms", "AvgBackgroundTime_ms",
	"BackgroundVsJitRatio", "JitVsBackgroundSpeedup",
}

func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// CreateRunDir creates <baseDir>/runs/<stamp> and points <baseDir>/latest at it.
func CreateRunDir(baseDir string, started time.Time) (string, error) {
	runDir := filepath.Join(baseDir, "runs", Stamp(started))
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// ReportFileName is the CSV file name for a run stamp.
func ReportFileName(stamp string) string {
	return fmt.Sprintf("benchmark_bg_vs_jit_%s.csv", stamp)
}

// FindReport returns the CSV report inside runDir.
func FindReport(runDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(runDir, "benchmark_bg_vs_jit_*.csv"))
	if err != nil {
		return "", fmt.Errorf("searching report in %s: %w", runDir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no report found in %s", runDir)
	}
	return matches[len(matches)-1], nil
}

// ReportInfo carries the per-run columns repeated on every report row.
type ReportInfo struct {
	Stamp     string
	BatchSize int
	Host      string
}

// WriteReport writes records as CSV rows in the order given.
func WriteReport(w io.Writer, info ReportInfo, records []TrialRecord) error {
	host := info.Host
	if host == "" {
		host = LocalHost
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}
	for _, r := range records {
		row := []string{
			info.Stamp,
			r.Spec.Primitive,
			strconv.Itoa(r.Spec.Num),
			strconv.Itoa(r.Spec.Width),
			strconv.Itoa(info.BatchSize),
			host,
			fmt.Sprintf("%.2f", r.JIT.Time0),
			fmt.Sprintf("%.2f", r.JIT.Time1),
			fmt.Sprintf("%.2f", r.JIT.AvgTime),
			fmt.Sprintf("%.2f", r.Background.Time0),
			fmt.Sprintf("%.2f", r.Background.Time1),
			fmt.Sprintf("%.2f", r.Background.AvgTime),
			fmt.Sprintf("%.4f", r.BackgroundToJITRatio),
			fmt.Sprintf("%.4f", r.JITToBackgroundSpeedup),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing report row for %s: %w", r.Spec, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportFile writes the CSV report into runDir and returns its path.
func WriteReportFile(runDir string, info ReportInfo, records []TrialRecord) (string, error) {
	path := filepath.Join(runDir, ReportFileName(info.Stamp))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}
	if err := WriteReport(f, info, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing report: %w", err)
	}
	return path, nil
}

// ReadReport parses a CSV report back into records.
// Ratios are taken from the file, so they carry its four-decimal precision.
func ReadReport(r io.Reader) (ReportInfo, []TrialRecord, error) {
	var info ReportInfo
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ReportHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return info, nil, fmt.Errorf("reading report: %w", err)
	}
	if len(rows) == 0 {
		return info, nil, fmt.Errorf("reading report: missing header")
	}
	var records []TrialRecord
	for i, row := range rows[1:] {
		rec, rowInfo, err := parseRow(row)
		if err != nil {
			return info, nil, fmt.Errorf("report row %d: %w", i+2, err)
		}
		info = rowInfo
		records = append(records, rec)
	}
	return info, records, nil
}

// ReadReportFile reads the CSV report at path.
func ReadReportFile(path string) (ReportInfo, []TrialRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReportInfo{}, nil, fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()
	return ReadReport(f)
}

func parseRow(row []string) (TrialRecord, ReportInfo, error) {
	var rec TrialRecord
	info := ReportInfo{Stamp: row[0], Host: row[5]}
	ints := make([]int, 3)
	for i, col := range []int{2, 3, 4} {
		v, err := strconv.Atoi(row[col])
		if err != nil {
			return rec, info, fmt.Errorf("column %s: %w", ReportHeader[col], err)
		}
		ints[i] = v
	}
	floats := make([]float64, 8)
	for i := range floats {
		col := 6 + i
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil {
			return rec, info, fmt.Errorf("column %s: %w", ReportHeader[col], err)
		}
		floats[i] = v
	}
	info.BatchSize = ints[2]
	rec = TrialRecord{
		Spec:                   TrialSpec{Primitive: row[1], Num: ints[0], Width: ints[1]},
		JIT:                    RawResult{Time0: floats[0], Time1: floats[1], AvgTime: floats[2]},
		Background:             RawResult{Time0: floats[3], Time1: floats[4], AvgTime: floats[5]},
		BackgroundToJITRatio:   floats[6],
		JITToBackgroundSpeedup: floats[7],
	}
	return rec, info, nil
}

// WriteRunMeta writes meta.json into runDir.
func WriteRunMeta(runDir string, meta *RunMeta) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating run dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, "meta.json"), data, 0o644)
}

// ReadRunMeta reads a meta.json file.
func ReadRunMeta(path string) (*RunMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta: %w", err)
	}
	return &meta, nil
}
