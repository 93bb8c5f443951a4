package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// ExitInterrupted is the process status after an interrupted sweep.
const ExitInterrupted = 130

// Manager owns the sweep cancellation token and the exit flag.
type Manager struct {
	reg    *Registry
	logger *slog.Logger
	cancel context.CancelFunc
	exit   func(code int)

	shouldExit atomic.Bool
	mu         sync.Mutex
	reason     string
}

type Option func(*Manager)

// WithExit replaces os.Exit for the second-signal path.
func WithExit(fn func(code int)) Option {
	return func(m *Manager) { m.exit = fn }
}

// NewManager derives the sweep context from parent. Trigger cancels it.
func NewManager(parent context.Context, reg *Registry, logger *slog.Logger, opts ...Option) (*Manager, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	m := &Manager{
		reg:    reg,
		logger: logger,
		cancel: cancel,
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, ctx
}

// ShouldExit reports whether an interrupt was requested. It never resets.
func (m *Manager) ShouldExit() bool {
	return m.shouldExit.Load()
}

// Reason returns the reason passed to the first Trigger.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Trigger sets the exit flag, cancels the sweep context and kills every
// tracked worker. Later calls only repeat the kill.
func (m *Manager) Trigger(reason string) {
	if m.shouldExit.CompareAndSwap(false, true) {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()
		m.logger.Warn("interrupt requested, stopping sweep", "reason", reason, "workers", m.reg.Len())
	}
	// Cancel first so a runner sees the interrupt before its worker's EOF.
	m.cancel()
	m.killWorkers()
}

// Release cancels the sweep context without marking an interrupt.
func (m *Manager) Release() {
	m.cancel()
}

func (m *Manager) killWorkers() {
	if err := m.reg.KillAll(); err != nil {
		m.logger.Warn("killing workers", "error", err)
	}
}

// Watch handles SIGINT and SIGTERM until stop is called. The first signal
// triggers a graceful interrupt; a second one kills tracked workers and
// exits with ExitInterrupted immediately.
func (m *Manager) Watch() (stop func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sig := <-sigCh:
				m.handle(sig)
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			wg.Wait()
		})
	}
}

func (m *Manager) handle(sig os.Signal) {
	if !m.ShouldExit() {
		m.Trigger(sig.String())
		return
	}
	m.logger.Warn("second interrupt, exiting now", "signal", sig.String())
	m.killWorkers()
	m.exit(ExitInterrupted)
}
