package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/signalnine/bgjit/internal/config"
	"github.com/signalnine/bgjit/internal/gitops"
	"github.com/signalnine/bgjit/internal/lifecycle"
	"github.com/signalnine/bgjit/internal/progress"
	"github.com/signalnine/bgjit/internal/report"
	"github.com/signalnine/bgjit/internal/result"
	"github.com/signalnine/bgjit/internal/store"
	"github.com/signalnine/bgjit/internal/sweep"
	"github.com/signalnine/bgjit/internal/worker"
)

// sweepFlags override config fields only when explicitly set.
type sweepFlags struct {
	nums, sortNums, widths []int
	host                   string
	batchSize              int

	buildDir      string
	resultsDir    string
	db            string
	resultTimeout time.Duration
	grace         time.Duration
	noLauncher    bool
	dockerImage   string
	envFile       string
	progressWS    string
	mqttBroker    string
	mqttTopic     string
	chart         bool
}

func (f *sweepFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Var(newIntList(&f.nums), "nums", "operand counts for non-sort primitives (comma-separated)")
	fs.Var(newIntList(&f.sortNums), "sort_nums", "operand counts for sort (comma-separated, 0 skips sort)")
	fs.Var(newIntList(&f.widths), "widths", "bit widths (comma-separated)")
	fs.StringVar(&f.host, "host", "", "launcher host placement, e.g. va:1,oh:1,ca:1 (default local)")
	fs.IntVar(&f.batchSize, "batch_size", 0, "batch size passed to every worker")

	fs.StringVar(&f.buildDir, "build-dir", "", "engine build directory containing the workers")
	fs.StringVar(&f.resultsDir, "results-dir", "", "directory receiving runs/<stamp>/ reports")
	fs.StringVar(&f.db, "db", "", "SQLite database recording sweeps and trials")
	fs.DurationVar(&f.resultTimeout, "result-timeout", 0, "per-worker deadline for the RESULT line")
	fs.DurationVar(&f.grace, "grace", 0, "delay between SIGTERM and SIGKILL after a result")
	fs.BoolVar(&f.noLauncher, "no-launcher", false, "run workers directly without the launcher prefix")
	fs.StringVar(&f.dockerImage, "docker-image", "", "run workers in containers from this image")
	fs.StringVar(&f.envFile, "env-file", "", "KEY=VALUE file added to the worker environment")
	fs.StringVar(&f.progressWS, "progress-ws", "", "serve progress events over WebSocket on this address")
	fs.StringVar(&f.mqttBroker, "mqtt-broker", "", "publish progress events to this MQTT broker")
	fs.StringVar(&f.mqttTopic, "mqtt-topic", "", "MQTT topic prefix for progress events")
	fs.BoolVar(&f.chart, "chart", false, "also write report.html and report.png into the run directory")
}

// apply copies every explicitly set flag onto cfg.
func (f *sweepFlags) apply(fs *pflag.FlagSet, cfg *config.SweepConfig) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("nums", func() { cfg.Nums = f.nums })
	set("sort_nums", func() { cfg.SortNums = f.sortNums })
	set("widths", func() { cfg.Widths = f.widths })
	set("host", func() { cfg.Host = f.host })
	set("batch_size", func() { cfg.BatchSize = f.batchSize })
	set("build-dir", func() { cfg.BuildDir = f.buildDir })
	set("results-dir", func() { cfg.Results.Dir = f.resultsDir })
	set("db", func() { cfg.Results.DB = f.db })
	set("result-timeout", func() { cfg.Timeouts.Result = f.resultTimeout })
	set("grace", func() { cfg.Timeouts.Grace = f.grace })
	set("no-launcher", func() { cfg.Launcher.Disabled = f.noLauncher })
	set("docker-image", func() { cfg.Docker.Image = f.dockerImage })
	set("env-file", func() { cfg.EnvFile = f.envFile })
	set("progress-ws", func() { cfg.Progress.WebSocket = f.progressWS })
	set("mqtt-broker", func() { cfg.Progress.MQTTBroker = f.mqttBroker })
	set("mqtt-topic", func() { cfg.Progress.MQTTTopic = f.mqttTopic })
}

func runSweep(cmd *cobra.Command, args []string, opts *rootOptions) error {
	stdout := cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
	if len(args) > 0 {
		logger.Debug("ignoring positional arguments", "args", args)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	opts.sweep.apply(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	var env []string
	if cfg.EnvFile != "" {
		if env, err = config.ParseEnvFile(cfg.EnvFile); err != nil {
			return err
		}
	}

	reg := lifecycle.NewRegistry()
	var mgrOpts []lifecycle.Option
	if opts.exit != nil {
		mgrOpts = append(mgrOpts, lifecycle.WithExit(opts.exit))
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	mgr, ctx := lifecycle.NewManager(parent, reg, logger, mgrOpts...)
	defer mgr.Release()
	stopWatch := mgr.Watch()
	defer stopWatch()

	launcher, inv, closeLauncher, err := newLauncher(cfg, env, reg, logger)
	if err != nil {
		return err
	}
	defer closeLauncher()

	started := time.Now()
	meta := &result.RunMeta{
		SweepID:        store.NewSweepID(),
		Stamp:          result.Stamp(started),
		StartedAt:      started,
		Host:           cfg.Host,
		BatchSize:      cfg.BatchSize,
		EngineRevision: gitops.RevisionOrEmpty(cfg.BuildDir),
		TotalCells:     sweep.TotalCells(cfg),
		Config:         cfg,
	}
	logger.Debug("sweep starting", "sweep", meta.SweepID, "cells", meta.TotalCells, "revision", meta.EngineRevision)

	bus := progress.NewBus(meta.SweepID, progress.NewPrinter(stdout))
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn("closing progress sinks", "error", err)
		}
	}()
	attachProgressSinks(bus, cfg, meta.SweepID, logger)

	var db *store.Store
	if cfg.Results.DB != "" {
		if db, err = store.Open(cfg.Results.DB, logger); err != nil {
			return err
		}
		defer db.Close()
		if err := db.BeginSweep(ctx, meta); err != nil {
			return err
		}
		bus.Attach(db.Recorder(meta.SweepID))
	}

	agg := report.NewAggregator()
	ctrl := &sweep.Controller{
		Config: cfg,
		Runner: &worker.Runner{
			Launcher:      launcher,
			Invocation:    inv,
			ResultTimeout: cfg.Timeouts.Result,
			Grace:         cfg.Timeouts.Grace,
			Logger:        logger,
		},
		Sink:     agg,
		Progress: bus,
		Logger:   logger,
	}
	out := ctrl.Run(ctx)

	meta.FinishedAt = time.Now()
	meta.AttemptedCells = out.Attempted
	meta.FailedCells = out.Failed
	meta.Records = len(out.Records)
	meta.SkippedPrimitives = out.SkippedPrimitives
	meta.Interrupted = out.Interrupted || mgr.ShouldExit()
	if meta.Interrupted {
		logger.Info("sweep interrupted", "reason", mgr.Reason(), "records", meta.Records)
	}

	reportPath, err := writeResults(stdout, cfg, meta, agg, opts.sweep.chart, logger)
	if db != nil {
		// The sweep context may already be cancelled.
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if ferr := db.FinishSweep(fctx, meta, reportPath); ferr != nil {
			logger.Warn("recording sweep completion", "error", ferr)
		}
		cancel()
	}
	if err != nil {
		return err
	}
	if meta.Interrupted {
		return ErrInterrupted
	}
	return nil
}

// writeResults writes the run directory when at least one record exists and
// returns the CSV path, or "" when nothing was written.
func writeResults(w io.Writer, cfg *config.SweepConfig, meta *result.RunMeta, agg *report.Aggregator, charts bool, logger *slog.Logger) (string, error) {
	summary, err := agg.Finalize()
	if errors.Is(err, report.ErrNoRecords) {
		fmt.Fprintln(w, "No successful tests completed.")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	records := agg.Records()

	runDir, err := result.CreateRunDir(cfg.Results.Dir, meta.StartedAt)
	if err != nil {
		return "", err
	}
	path, err := result.WriteReportFile(runDir, result.ReportInfo{
		Stamp:     meta.Stamp,
		BatchSize: cfg.BatchSize,
		Host:      cfg.Host,
	}, records)
	if err != nil {
		return "", err
	}
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		return path, err
	}
	if charts {
		if err := writeCharts(runDir, meta.Stamp, summary, records); err != nil {
			logger.Warn("rendering charts", "dir", runDir, "error", err)
		}
	}
	report.WriteCompletion(w, summary, path)
	return path, nil
}

func newLauncher(cfg *config.SweepConfig, env []string, reg *lifecycle.Registry, logger *slog.Logger) (worker.Launcher, worker.Invocation, func(), error) {
	inv := worker.NewInvocation(cfg)
	if cfg.Docker.Image == "" {
		return &worker.ProcessLauncher{Env: env, Registry: reg, Logger: logger}, inv, func() {}, nil
	}
	dl, err := worker.NewDockerLauncher(cfg.Docker.Image, cfg.BuildDir, cfg.Docker.BuildMount, env, reg, logger)
	if err != nil {
		return nil, inv, nil, err
	}
	// Worker paths resolve inside the container.
	inv.BuildDir = cfg.Docker.BuildMount
	return dl, inv, func() {
		if err := dl.Close(); err != nil {
			logger.Debug("closing docker client", "error", err)
		}
	}, nil
}

// attachProgressSinks adds the optional network sinks. They only observe the
// sweep, so a sink that cannot start is logged and skipped.
func attachProgressSinks(bus *progress.Bus, cfg *config.SweepConfig, sweepID string, logger *slog.Logger) {
	if addr := cfg.Progress.WebSocket; addr != "" {
		hub := progress.NewHub(logger)
		if err := hub.Listen(addr); err != nil {
			logger.Warn("progress websocket disabled", "error", err)
		} else {
			bus.Attach(hub)
		}
	}
	if broker := cfg.Progress.MQTTBroker; broker != "" {
		pub, err := progress.DialMQTT(broker, cfg.Progress.MQTTTopic, "bgjit-"+shortID(sweepID), logger)
		if err != nil {
			logger.Warn("progress mqtt disabled", "broker", broker, "error", err)
		} else {
			bus.Attach(pub)
		}
	}
}

func writeCharts(runDir, stamp string, s *report.Summary, records []result.TrialRecord) error {
	f, err := os.Create(filepath.Join(runDir, "report.html"))
	if err != nil {
		return err
	}
	herr := report.RenderHTML("Background vs JIT "+stamp, records, f)
	if cerr := f.Close(); herr == nil {
		herr = cerr
	}
	perr := report.RenderPNG(s, filepath.Join(runDir, "report.png"))
	return errors.Join(herr, perr)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
