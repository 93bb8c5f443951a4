package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry tracks kill callbacks for the workers this process spawned.
// Only tracked workers are ever signalled on interrupt.
type Registry struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]entry
}

type entry struct {
	name string
	kill func() error
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint64]entry)}
}

// Track registers kill under name. The returned release removes it and is
// safe to call more than once.
func (r *Registry) Track(name string, kill func() error) (release func()) {
	r.mu.Lock()
	id := r.next
	r.next++
	r.entries[id] = entry{name: name, kill: kill}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.entries, id)
			r.mu.Unlock()
		})
	}
}

// KillAll invokes every tracked kill callback in registration order.
// Entries stay registered until their owner releases them.
func (r *Registry) KillAll() error {
	var errs []error
	for _, e := range r.snapshot() {
		if err := e.kill(); err != nil {
			errs = append(errs, fmt.Errorf("killing %s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Names lists tracked workers in registration order.
func (r *Registry) Names() []string {
	var names []string
	for _, e := range r.snapshot() {
		names = append(names, e.name)
	}
	return names
}

func (r *Registry) snapshot() []entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id])
	}
	return out
}
