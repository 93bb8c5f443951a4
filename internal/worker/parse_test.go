package worker_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signalnine/bgjit/internal/config"
	"github.com/signalnine/bgjit/internal/result"
	"github.com/signalnine/bgjit/internal/worker"
)

func TestParseResultLine(t *testing.T) {
	echo, res, err := worker.ParseResultLine("RESULT:==,10,8,1.0,2.0,1.5\n")
	if err != nil {
		t.Fatalf("ParseResultLine: %v", err)
	}
	want := &result.RawResult{Time0: 1.0, Time1: 2.0, AvgTime: 1.5}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if !echo.Matches(result.TrialSpec{Primitive: "==", Num: 10, Width: 8}) {
		t.Errorf("echo %+v does not match cell", echo)
	}
}

func TestParseResultLineRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no prefix", "==,10,8,1.0,2.0,1.5"},
		{"five fields", "RESULT:==,10,8,1.0,2.0"},
		{"seven fields", "RESULT:==,10,8,1.0,2.0,1.5,9"},
		{"bad time", "RESULT:==,10,8,abc,2.0,1.5"},
		{"bad num", "RESULT:==,ten,8,1.0,2.0,1.5"},
		{"bad width", "RESULT:==,10,8.5,1.0,2.0,1.5"},
		{"empty", "RESULT:"},
		{"nan time", "RESULT:==,10,8,1.0,2.0,nan"},
		{"inf time", "RESULT:==,10,8,inf,2.0,1.5"},
		{"negative inf time", "RESULT:==,10,8,1.0,-Inf,1.5"},
		{"negative time", "RESULT:==,10,8,1.0,2.0,-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res, err := worker.ParseResultLine(tt.line)
			if !errors.Is(err, worker.ErrProtocol) {
				t.Errorf("expected ErrProtocol, got %v", err)
			}
			if res != nil {
				t.Errorf("expected absent result, got %+v", res)
			}
		})
	}
}

func TestInvocationArgv(t *testing.T) {
	cfg := config.Default()
	cfg.BuildDir = "/opt/build"
	inv := worker.NewInvocation(cfg)
	spec := result.TrialSpec{Primitive: "<=", Num: 1000, Width: 16}

	want := []string{
		"mpirun", "--bind-to", "none", "-np", "3",
		"/opt/build/primitives/benchmark/benchmark_jit_single",
		"--primitive=<=", "--num=1000", "--width=16", "--batch_size", "1000",
	}
	if diff := cmp.Diff(want, inv.Argv(spec, result.JIT)); diff != "" {
		t.Errorf("jit argv mismatch (-want +got):\n%s", diff)
	}

	inv.Host = "va:1,oh:1,ca:1"
	got := inv.Argv(spec, result.Background)
	if diff := cmp.Diff([]string{"-host", "va:1,oh:1,ca:1"}, got[5:7]); diff != "" {
		t.Errorf("host args mismatch (-want +got):\n%s", diff)
	}
	if got[7] != "/opt/build/primitives/benchmark/benchmark_background_single" {
		t.Errorf("background executable: got %q", got[7])
	}
}

func TestInvocationWithoutLauncher(t *testing.T) {
	cfg := config.Default()
	cfg.BuildDir = "/b"
	cfg.Launcher.Disabled = true
	cfg.Host = "ignored"
	got := worker.NewInvocation(cfg).Argv(result.TrialSpec{Primitive: "sort", Num: 500, Width: 1}, result.JIT)
	want := []string{
		"/b/primitives/benchmark/benchmark_jit_single",
		"--primitive=sort", "--num=500", "--width=1", "--batch_size", "1000",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}
