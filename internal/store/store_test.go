package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/bgjit/internal/progress"
	"github.com/signalnine/bgjit/internal/result"
	"github.com/signalnine/bgjit/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bgjit.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMeta(id string, started time.Time) *result.RunMeta {
	return &result.RunMeta{
		SweepID:    id,
		Stamp:      result.Stamp(started),
		StartedAt:  started,
		Host:       "va:1",
		BatchSize:  1000,
		TotalCells: 4,
		Config:     map[string]any{"widths": []int{8}},
	}
}

func record(p string, num, width int, jit, bg float64) result.TrialRecord {
	return result.NewTrialRecord(result.TrialSpec{Primitive: p, Num: num, Width: width},
		result.RawResult{Time0: jit, Time1: jit, AvgTime: jit},
		result.RawResult{Time0: bg, Time1: bg, AvgTime: bg})
}

func TestOpenMigratesToLatest(t *testing.T) {
	s := openStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
	// Re-running is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bgjit.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.BeginSweep(context.Background(), sampleMeta("a", time.Now())))
	require.NoError(t, s.Close())

	s, err = store.Open(path, logger)
	require.NoError(t, err)
	defer s.Close()
	sweeps, err := s.ListSweeps(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sweeps, 1)
	assert.Equal(t, "a", sweeps[0].ID)
}

func TestSweepLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	started := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	id := store.NewSweepID()
	meta := sampleMeta(id, started)
	require.NoError(t, s.BeginSweep(ctx, meta))

	sw, err := s.GetSweep(ctx, id)
	require.NoError(t, err)
	assert.True(t, sw.FinishedAt.IsZero())
	assert.True(t, sw.StartedAt.Equal(started))
	assert.JSONEq(t, `{"widths":[8]}`, string(sw.Config))

	recs := []result.TrialRecord{record("==", 10, 8, 2, 1), record("sort", 500, 8, 4, 8)}
	for i, r := range recs {
		require.NoError(t, s.AddTrial(ctx, id, i+1, r))
	}

	meta.FinishedAt = started.Add(time.Minute)
	meta.AttemptedCells = 3
	meta.FailedCells = 1
	meta.Records = 2
	meta.Interrupted = true
	require.NoError(t, s.FinishSweep(ctx, meta, "/tmp/report.csv"))

	sw, err = s.GetSweep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, sw.AttemptedCells)
	assert.Equal(t, 1, sw.FailedCells)
	assert.Equal(t, 2, sw.Records)
	assert.True(t, sw.Interrupted)
	assert.Equal(t, "/tmp/report.csv", sw.ReportPath)
	assert.True(t, sw.FinishedAt.Equal(meta.FinishedAt))

	got, err := s.Trials(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestGetUnknownSweep(t *testing.T) {
	s := openStore(t)
	_, err := s.GetSweep(context.Background(), "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	err = s.FinishSweep(context.Background(), sampleMeta("nope", time.Now()), "")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestTrialRequiresSweep(t *testing.T) {
	s := openStore(t)
	err := s.AddTrial(context.Background(), "missing", 1, record("==", 10, 8, 1, 1))
	assert.Error(t, err)
}

func TestListSweepsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.BeginSweep(ctx, sampleMeta(id, base.Add(time.Duration(i)*time.Hour))))
	}
	all, err := s.ListSweeps(ctx, 0)
	require.NoError(t, err)
	var ids []string
	for _, sw := range all {
		ids = append(ids, sw.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)

	limited, err := s.ListSweeps(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ID)
}

func TestRecorderPersistsCompletedTrials(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id := store.NewSweepID()
	require.NoError(t, s.BeginSweep(ctx, sampleMeta(id, time.Now())))

	rec := s.Recorder(id)
	bus := progress.NewBus(id, rec)
	r1 := record("==", 10, 8, 2, 1)
	r2 := record("==", 10, 16, 3, 3)
	bus.Emit(progress.Event{Kind: progress.SweepStarted})
	bus.Emit(progress.Event{Kind: progress.TrialCompleted, Record: &r1})
	bus.Emit(progress.Event{Kind: progress.VariantFailed, Variant: "jit"})
	bus.Emit(progress.Event{Kind: progress.TrialCompleted, Record: &r2})

	assert.Equal(t, 2, rec.Written())
	got, err := s.Trials(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []result.TrialRecord{r1, r2}, got)
}

func TestSweepConfigIsJSON(t *testing.T) {
	s := openStore(t)
	meta := sampleMeta("cfg", time.Now())
	meta.Config = nil
	require.NoError(t, s.BeginSweep(context.Background(), meta))
	sw, err := s.GetSweep(context.Background(), "cfg")
	require.NoError(t, err)
	assert.True(t, json.Valid(sw.Config))
}
