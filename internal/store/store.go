// Package store persists sweeps and their trial records in SQLite so runs can
// be compared after the per-run CSV directories are gone.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/signalnine/bgjit/internal/result"
)

// ErrNotFound is returned for an unknown sweep ID.
var ErrNotFound = errors.New("sweep not found")

const timeLayout = time.RFC3339Nano

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Sweep is one row of the sweeps table.
type Sweep struct {
	ID             string
	Stamp          string
	StartedAt      time.Time
	FinishedAt     time.Time // zero while running
	Host           string
	BatchSize      int
	EngineRevision string
	TotalCells     int
	AttemptedCells int
	FailedCells    int
	Records        int
	Interrupted    bool
	ReportPath     string
	Config         json.RawMessage
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// NewSweepID returns a fresh random sweep identifier.
func NewSweepID() string { return uuid.NewString() }

// BeginSweep inserts the sweep row from the run's opening metadata.
func (s *Store) BeginSweep(ctx context.Context, meta *result.RunMeta) error {
	cfg, err := json.Marshal(meta.Config)
	if err != nil {
		return fmt.Errorf("encoding sweep config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sweeps (id, stamp, started_at, host, batch_size, engine_revision, total_cells, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.SweepID, meta.Stamp, meta.StartedAt.Format(timeLayout), meta.Host, meta.BatchSize,
		meta.EngineRevision, meta.TotalCells, string(cfg))
	if err != nil {
		return fmt.Errorf("inserting sweep %s: %w", meta.SweepID, err)
	}
	return nil
}

// AddTrial stores rec as the seq'th successful trial of the sweep.
func (s *Store) AddTrial(ctx context.Context, sweepID string, seq int, rec result.TrialRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trials (sweep_id, seq, primitive, num, width,
			jit_time0_ms, jit_time1_ms, jit_avg_ms, bg_time0_ms, bg_time1_ms, bg_avg_ms,
			bg_to_jit_ratio, jit_to_bg_speedup)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sweepID, seq, rec.Spec.Primitive, rec.Spec.Num, rec.Spec.Width,
		rec.JIT.Time0, rec.JIT.Time1, rec.JIT.AvgTime,
		rec.Background.Time0, rec.Background.Time1, rec.Background.AvgTime,
		rec.BackgroundToJITRatio, rec.JITToBackgroundSpeedup)
	if err != nil {
		return fmt.Errorf("inserting trial %d of sweep %s: %w", seq, sweepID, err)
	}
	return nil
}

// FinishSweep records the closing counters and report location.
func (s *Store) FinishSweep(ctx context.Context, meta *result.RunMeta, reportPath string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sweeps SET finished_at = ?, attempted_cells = ?, failed_cells = ?, records = ?,
			interrupted = ?, report_path = ?
		WHERE id = ?`,
		meta.FinishedAt.Format(timeLayout), meta.AttemptedCells, meta.FailedCells, meta.Records,
		meta.Interrupted, reportPath, meta.SweepID)
	if err != nil {
		return fmt.Errorf("finishing sweep %s: %w", meta.SweepID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing sweep %s: %w", meta.SweepID, ErrNotFound)
	}
	return nil
}

const sweepColumns = `id, stamp, started_at, finished_at, host, batch_size, engine_revision,
	total_cells, attempted_cells, failed_cells, records, interrupted, report_path, config`

// ListSweeps returns the most recent sweeps first; limit <= 0 means all.
func (s *Store) ListSweeps(ctx context.Context, limit int) ([]Sweep, error) {
	q := `SELECT ` + sweepColumns + ` FROM sweeps ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sweeps: %w", err)
	}
	defer rows.Close()

	var out []Sweep
	for rows.Next() {
		sw, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

// GetSweep loads one sweep by ID.
func (s *Store) GetSweep(ctx context.Context, id string) (Sweep, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sweepColumns+` FROM sweeps WHERE id = ?`, id)
	sw, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Sweep{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sw, err
}

// Trials returns the sweep's records in completion order.
func (s *Store) Trials(ctx context.Context, sweepID string) ([]result.TrialRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT primitive, num, width, jit_time0_ms, jit_time1_ms, jit_avg_ms,
			bg_time0_ms, bg_time1_ms, bg_avg_ms, bg_to_jit_ratio, jit_to_bg_speedup
		FROM trials WHERE sweep_id = ? ORDER BY seq`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("querying trials of sweep %s: %w", sweepID, err)
	}
	defer rows.Close()

	var out []result.TrialRecord
	for rows.Next() {
		var r result.TrialRecord
		if err := rows.Scan(&r.Spec.Primitive, &r.Spec.Num, &r.Spec.Width,
			&r.JIT.Time0, &r.JIT.Time1, &r.JIT.AvgTime,
			&r.Background.Time0, &r.Background.Time1, &r.Background.AvgTime,
			&r.BackgroundToJITRatio, &r.JITToBackgroundSpeedup); err != nil {
			return nil, fmt.Errorf("scanning trial: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(sc scanner) (Sweep, error) {
	var (
		sw               Sweep
		started          string
		finished, config sql.NullString
	)
	err := sc.Scan(&sw.ID, &sw.Stamp, &started, &finished, &sw.Host, &sw.BatchSize, &sw.EngineRevision,
		&sw.TotalCells, &sw.AttemptedCells, &sw.FailedCells, &sw.Records, &sw.Interrupted,
		&sw.ReportPath, &config)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Sweep{}, err
		}
		return Sweep{}, fmt.Errorf("scanning sweep: %w", err)
	}
	if sw.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Sweep{}, fmt.Errorf("sweep %s started_at: %w", sw.ID, err)
	}
	if finished.Valid {
		if sw.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return Sweep{}, fmt.Errorf("sweep %s finished_at: %w", sw.ID, err)
		}
	}
	if config.Valid {
		sw.Config = json.RawMessage(config.String)
	}
	return sw, nil
}
