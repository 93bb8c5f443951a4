package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/signalnine/bgjit/internal/lifecycle"
)

// reapTimeout bounds how long Close waits for a killed worker to be reaped.
const reapTimeout = 5 * time.Second

// ProcessLauncher runs workers as local processes, each in its own process group.
type ProcessLauncher struct {
	Env      []string
	Registry *lifecycle.Registry
	Logger   *slog.Logger
}

func (l *ProcessLauncher) Launch(ctx context.Context, name string, argv []string) (Handle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = w
	cmd.Env = append(os.Environ(), l.Env...)
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}
	w.Close()

	exited := make(chan struct{})
	h := &processHandle{
		cmd:    cmd,
		stdout: r,
		exited: exited,
		logger: l.Logger.With("worker", name, "pgid", cmd.Process.Pid),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(exited)
	}()
	h.release = l.Registry.Track(fmt.Sprintf("%s (pgid %d)", name, cmd.Process.Pid), h.kill)
	return h, nil
}

type processHandle struct {
	cmd     *exec.Cmd
	stdout  *os.File
	exited  chan struct{}
	waitErr error
	release func()
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (h *processHandle) Stdout() io.Reader { return h.stdout }

func (h *processHandle) Stop(grace time.Duration) error {
	if err := h.terminate(); err != nil {
		h.logger.Debug("terminate failed", "error", err)
	}
	select {
	case <-h.exited:
		return nil
	case <-time.After(grace):
	}
	return h.kill()
}

func (h *processHandle) Close() error {
	h.closeOnce.Do(func() {
		// A second kill reaches descendants that outlived the group leader.
		if err := h.kill(); err != nil {
			h.logger.Debug("kill on close failed", "error", err)
		}
		// The group has had its last signal. Once it drains the pgid may be
		// recycled, so an interrupt during the reap wait must not signal it.
		h.release()
		select {
		case <-h.exited:
			h.logger.Debug("worker reaped", "wait", h.waitErr)
		case <-time.After(reapTimeout):
			h.closeErr = fmt.Errorf("worker pid %d not reaped after %s", h.cmd.Process.Pid, reapTimeout)
		}
		if err := h.stdout.Close(); err != nil && h.closeErr == nil {
			h.closeErr = fmt.Errorf("closing stdout: %w", err)
		}
	})
	return h.closeErr
}
