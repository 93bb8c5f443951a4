package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signalnine/bgjit/internal/result"
)

const (
	DefaultResultTimeout = 30 * time.Minute
	DefaultGrace         = 100 * time.Millisecond
)

// maxLineBytes caps a single worker output line.
const maxLineBytes = 1 << 20

// Runner executes single trials. A non-nil error from Run always means the
// result is absent; the sweep decides what to do with it.
type Runner struct {
	Launcher      Launcher
	Invocation    Invocation
	ResultTimeout time.Duration
	Grace         time.Duration
	Logger        *slog.Logger
}

// Run launches the worker for spec under variant v, waits for its RESULT
// line and tears the worker down before returning.
func (r *Runner) Run(ctx context.Context, spec result.TrialSpec, v result.Variant) (*result.RawResult, error) {
	if ctx.Err() != nil {
		return nil, ErrInterrupted
	}
	logger := r.logger().With(
		slog.String("primitive", spec.Primitive),
		slog.Int("num", spec.Num),
		slog.Int("width", spec.Width),
		slog.String("variant", v.String()),
	)
	argv := r.Invocation.Argv(spec, v)
	logger.Debug("launching worker", "argv", strings.Join(argv, " "))

	h, err := r.Launcher.Launch(ctx, v.String(), argv)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}
		logger.Error("worker failed to start", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Warn("worker cleanup", "error", err)
		}
	}()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go readLines(h, lines, done)

	timeout := r.ResultTimeout
	if timeout <= 0 {
		timeout = DefaultResultTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker interrupted")
			return nil, ErrInterrupted
		case <-deadline.C:
			logger.Error("no result before deadline", "timeout", timeout)
			return nil, fmt.Errorf("%w: after %s", ErrResultTimeout, timeout)
		case line, ok := <-lines:
			if !ok {
				if ctx.Err() != nil {
					return nil, ErrInterrupted
				}
				logger.Error("worker output ended without a result")
				return nil, ErrMissingResult
			}
			if !strings.HasPrefix(line, ResultPrefix) {
				continue
			}
			echo, res, err := ParseResultLine(line)
			if err != nil {
				logger.Error("error parsing result line", "error", err)
				return nil, err
			}
			if err := h.Stop(r.grace()); err != nil {
				logger.Debug("stopping worker", "error", err)
			}
			if !echo.Matches(spec) {
				logger.Warn("result line echoes a different cell",
					"echo_primitive", echo.Primitive, "echo_num", echo.Num, "echo_width", echo.Width)
			}
			return res, nil
		}
	}
}

func (r *Runner) grace() time.Duration {
	if r.Grace < 0 {
		return 0
	}
	return r.Grace
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func readLines(h Handle, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(h.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
}
