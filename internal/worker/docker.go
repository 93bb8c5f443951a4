package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"

	"github.com/signalnine/bgjit/internal/lifecycle"
)

// ContainerLabel marks every container the harness creates.
const ContainerLabel = "bgjit"

const dockerCleanupTimeout = 10 * time.Second

// DockerLauncher runs each worker in its own container with the build tree
// mounted read-only and host networking for the launcher's peers.
type DockerLauncher struct {
	Image      string
	BuildDir   string
	BuildMount string
	Env        []string
	Registry   *lifecycle.Registry
	Logger     *slog.Logger

	cli *client.Client
}

func NewDockerLauncher(image, buildDir, buildMount string, env []string, reg *lifecycle.Registry, logger *slog.Logger) (*DockerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	abs, err := filepath.Abs(buildDir)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("resolving build dir: %w", err)
	}
	return &DockerLauncher{
		Image:      image,
		BuildDir:   abs,
		BuildMount: buildMount,
		Env:        env,
		Registry:   reg,
		Logger:     logger,
		cli:        cli,
	}, nil
}

func (l *DockerLauncher) Close() error {
	return l.cli.Close()
}

func (l *DockerLauncher) Launch(ctx context.Context, name string, argv []string) (Handle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   l.BuildDir,
			Target:   l.BuildMount,
			ReadOnly: true,
		}},
		Init:        &initTrue,
		NetworkMode: "host",
	}
	containerCfg := &container.Config{
		Image:      l.Image,
		Cmd:        argv,
		Env:        l.Env,
		WorkingDir: l.BuildMount,
		Labels:     map[string]string{ContainerLabel: "true", ContainerLabel + ".worker": name},
	}

	createResp, err := l.cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	h := &containerHandle{
		cli:    l.cli,
		id:     createResp.ID,
		logger: l.Logger.With("worker", name, "container", shortID(createResp.ID)),
	}
	h.release = l.Registry.Track(fmt.Sprintf("%s (container %s)", name, shortID(h.id)), h.kill)

	if _, err := l.cli.ContainerStart(ctx, h.id, client.ContainerStartOptions{}); err != nil {
		h.Close()
		return nil, fmt.Errorf("starting container: %w", err)
	}
	logs, err := l.cli.ContainerLogs(ctx, h.id, client.ContainerLogsOptions{ShowStdout: true, Follow: true})
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("attaching to container output: %w", err)
	}
	pr, pw := io.Pipe()
	h.logs = logs
	h.stdout = pr
	go func() {
		_, err := stdcopy.StdCopy(pw, io.Discard, logs)
		pw.CloseWithError(err)
	}()
	return h, nil
}

type containerHandle struct {
	cli     *client.Client
	id      string
	logs    io.ReadCloser
	stdout  *io.PipeReader
	release func()
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (h *containerHandle) Stdout() io.Reader { return h.stdout }

func (h *containerHandle) Stop(grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace+dockerCleanupTimeout)
	defer cancel()
	if _, err := h.cli.ContainerKill(ctx, h.id, client.ContainerKillOptions{Signal: "SIGTERM"}); err != nil {
		h.logger.Debug("terminate failed", "error", err)
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, grace)
	defer waitCancel()
	wait := h.cli.ContainerWait(waitCtx, h.id, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	select {
	case <-wait.Result:
		return nil
	case <-wait.Error:
	case <-waitCtx.Done():
	}
	return h.kill()
}

func (h *containerHandle) kill() error {
	ctx, cancel := context.WithTimeout(context.Background(), dockerCleanupTimeout)
	defer cancel()
	_, err := h.cli.ContainerKill(ctx, h.id, client.ContainerKillOptions{Signal: "SIGKILL"})
	return err
}

func (h *containerHandle) Close() error {
	h.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), dockerCleanupTimeout)
		defer cancel()
		if _, err := h.cli.ContainerRemove(ctx, h.id, client.ContainerRemoveOptions{Force: true}); err != nil {
			h.closeErr = fmt.Errorf("removing container %s: %w", shortID(h.id), err)
		}
		h.release()
		if h.logs != nil {
			h.logs.Close()
		}
		if h.stdout != nil {
			h.stdout.Close()
		}
	})
	return h.closeErr
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
