package worker

import (
	"path/filepath"
	"strconv"

	"github.com/signalnine/bgjit/internal/config"
	"github.com/signalnine/bgjit/internal/result"
)

// Invocation builds worker command lines.
type Invocation struct {
	BuildDir  string
	Workers   config.Workers
	Launcher  config.Launcher
	Host      string
	BatchSize int
}

func NewInvocation(cfg *config.SweepConfig) Invocation {
	return Invocation{
		BuildDir:  cfg.BuildDir,
		Workers:   cfg.Workers,
		Launcher:  cfg.Launcher,
		Host:      cfg.Host,
		BatchSize: cfg.BatchSize,
	}
}

// Executable returns the worker binary path for v.
func (inv Invocation) Executable(v result.Variant) string {
	exe := inv.Workers.JIT
	if v == result.Background {
		exe = inv.Workers.Background
	}
	return filepath.Join(inv.BuildDir, inv.Workers.Dir, exe)
}

// Argv is the full command line for one trial of spec under variant v.
func (inv Invocation) Argv(spec result.TrialSpec, v result.Variant) []string {
	var argv []string
	if !inv.Launcher.Disabled {
		argv = append(argv, inv.Launcher.Command)
		if inv.Launcher.BindTo != "" {
			argv = append(argv, "--bind-to", inv.Launcher.BindTo)
		}
		argv = append(argv, "-np", strconv.Itoa(inv.Launcher.NP))
		if inv.Host != "" {
			argv = append(argv, "-host", inv.Host)
		}
	}
	return append(argv,
		inv.Executable(v),
		"--primitive="+spec.Primitive,
		"--num="+strconv.Itoa(spec.Num),
		"--width="+strconv.Itoa(spec.Width),
		"--batch_size", strconv.Itoa(inv.BatchSize),
	)
}
