package progress

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalnine/bgjit/internal/config"
	"github.com/signalnine/bgjit/internal/result"
)

type Kind string

const (
	SweepStarted     Kind = "sweep_started"
	PrimitiveStarted Kind = "primitive_started"
	PrimitiveSkipped Kind = "primitive_skipped"
	TrialStarted     Kind = "trial_started"
	VariantFailed    Kind = "variant_failed"
	TrialCompleted   Kind = "trial_completed"
	SweepFinished    Kind = "sweep_finished"
)

// Event is one step of a sweep as seen by progress sinks.
type Event struct {
	Seq       uint64              `json:"seq"`
	Time      time.Time           `json:"time"`
	SweepID   string              `json:"sweep_id,omitempty"`
	Kind      Kind                `json:"kind"`
	Primitive string              `json:"primitive,omitempty"`
	Spec      *result.TrialSpec   `json:"spec,omitempty"`
	Index     int                 `json:"index,omitempty"`
	Total     int                 `json:"total,omitempty"`
	Variant   string              `json:"variant,omitempty"`
	Error     string              `json:"error,omitempty"`
	Record    *result.TrialRecord `json:"record,omitempty"`
	Config    *config.SweepConfig `json:"config,omitempty"`
	Summary   *Counts             `json:"summary,omitempty"`
}

// Counts closes a sweep.
type Counts struct {
	Attempted   int  `json:"attempted"`
	Failed      int  `json:"failed"`
	Records     int  `json:"records"`
	Interrupted bool `json:"interrupted"`
}

// Sink receives every event of a sweep in order. Publish must not block
// the sweep for long; slow consumers drop events instead.
type Sink interface {
	Publish(Event)
}

// Bus stamps events and fans them out to its sinks.
type Bus struct {
	sweepID string
	seq     atomic.Uint64
	now     func() time.Time

	mu    sync.Mutex
	sinks []Sink
}

func NewBus(sweepID string, sinks ...Sink) *Bus {
	return &Bus{sweepID: sweepID, sinks: sinks, now: time.Now}
}

// Attach adds a sink for subsequent events.
func (b *Bus) Attach(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Bus) Emit(e Event) {
	e.Seq = b.seq.Add(1)
	e.Time = b.now()
	e.SweepID = b.sweepID
	b.mu.Lock()
	sinks := b.sinks
	b.mu.Unlock()
	for _, s := range sinks {
		s.Publish(e)
	}
}

// Close closes every sink that holds resources.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, s := range b.sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	b.sinks = nil
	return errors.Join(errs...)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }
