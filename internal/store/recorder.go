package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/signalnine/bgjit/internal/progress"
)

const writeTimeout = 5 * time.Second

// Recorder is a progress sink that writes each completed trial as it arrives,
// so an interrupted sweep keeps everything measured before the interrupt.
type Recorder struct {
	store   *Store
	sweepID string
	logger  *slog.Logger

	mu     sync.Mutex
	seq    int
	failed int
}

func (s *Store) Recorder(sweepID string) *Recorder {
	return &Recorder{store: s, sweepID: sweepID, logger: s.logger}
}

func (r *Recorder) Publish(e progress.Event) {
	if e.Kind != progress.TrialCompleted || e.Record == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.AddTrial(ctx, r.sweepID, r.seq, *e.Record); err != nil {
		r.failed++
		r.logger.Warn("persisting trial", "sweep", r.sweepID, "cell", e.Record.Spec.String(), "error", err)
	}
}

// Written is the number of trials persisted so far.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq - r.failed
}
