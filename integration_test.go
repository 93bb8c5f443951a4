//go:build integration

package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/signalnine/bgjit/internal/result"
)

// workerScript answers every cell except "!=", where it records that it
// started and hangs until killed.
const workerScript = `#!/bin/sh
for a in "$@"; do
  case $a in
    --primitive=*) p=${a#--primitive=} ;;
    --num=*) n=${a#--num=} ;;
    --width=*) w=${a#--width=} ;;
  esac
done
echo "Initializing parties..."
if [ "$p" = "!=" ]; then
  touch "$BGJIT_MARKER"
  sleep 3600 &
  wait
fi
echo "RESULT:$p,$n,$w,$T0,$T1,$AVG"
sleep 3600 &
wait
`

func buildHarness(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "bgjit")
	build := exec.Command("go", "build", "-o", bin, ".")
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v: %s", err, out)
	}
	return bin
}

// createBuildDir lays out <build>/primitives/benchmark with both workers.
func createBuildDir(t *testing.T) string {
	t.Helper()
	build := t.TempDir()
	dir := filepath.Join(build, "primitives", "benchmark")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	workers := map[string]string{
		"benchmark_jit_single":        "T0=2.0 T1=4.0 AVG=3.0",
		"benchmark_background_single": "T0=1.0 T1=2.0 AVG=1.5",
	}
	for name, times := range workers {
		script := strings.Replace(workerScript, "#!/bin/sh\n", "#!/bin/sh\n"+strings.ReplaceAll(times, " ", "\n")+"\n", 1)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return build
}

func TestSweepEndToEnd(t *testing.T) {
	bin := buildHarness(t)
	build := createBuildDir(t)
	results := t.TempDir()

	cmd := exec.Command(bin,
		"--build-dir", build, "--results-dir", results, "--no-launcher",
		"--nums=10,20", "--sort_nums=0", "--widths=8", "--db", filepath.Join(results, "bgjit.db"),
		"--result-timeout=3s")
	cmd.Env = append(os.Environ(), "BGJIT_MARKER="+filepath.Join(results, "marker"))
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	// "!=" hangs until the result deadline; every other cell answers.
	if err := cmd.Run(); err != nil {
		t.Fatalf("bgjit: %v\n%s", err, stdout.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "Skipping primitive: sort (data size contains 0)") {
		t.Errorf("sort not skipped:\n%s", out)
	}
	if !strings.Contains(out, "Total tests executed: 8\n") {
		t.Errorf("unexpected completion:\n%s", out)
	}

	path, err := result.FindReport(filepath.Join(results, "latest"))
	if err != nil {
		t.Fatalf("FindReport: %v", err)
	}
	_, records, err := result.ReadReportFile(path)
	if err != nil {
		t.Fatalf("ReadReportFile: %v", err)
	}
	if len(records) != 8 {
		t.Fatalf("records: got %d, want 8", len(records))
	}
	if r := records[0]; r.BackgroundToJITRatio != 0.5 || r.JITToBackgroundSpeedup != 2 {
		t.Errorf("ratios: got %+v", r)
	}
	assertNoWorkersLeft(t, build)
}

func TestSweepInterrupted(t *testing.T) {
	bin := buildHarness(t)
	build := createBuildDir(t)
	results := t.TempDir()
	marker := filepath.Join(results, "marker")

	cmd := exec.Command(bin,
		"--build-dir", build, "--results-dir", results, "--no-launcher",
		"--nums=10", "--sort_nums=0", "--widths=8")
	cmd.Env = append(os.Environ(), "BGJIT_MARKER="+marker)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		if _, err := os.Stat(marker); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cmd.Process.Kill()
			t.Fatalf("worker for != never started:\n%s", stdout.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
	cmd.Process.Signal(syscall.SIGINT)

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 130 {
		t.Fatalf("exit: got %v, want status 130\n%s", err, stdout.String())
	}
	// "<" "<=" "==" ran before "!=".
	if !strings.Contains(stdout.String(), "Total tests executed: 3\n") {
		t.Errorf("partial report missing:\n%s", stdout.String())
	}
	meta, err := result.ReadRunMeta(filepath.Join(results, "latest", "meta.json"))
	if err != nil {
		t.Fatalf("ReadRunMeta: %v", err)
	}
	if !meta.Interrupted || meta.Records != 3 {
		t.Errorf("meta: got interrupted=%v records=%d", meta.Interrupted, meta.Records)
	}
	assertNoWorkersLeft(t, build)
}

// assertNoWorkersLeft fails if any process still runs a worker from build.
func assertNoWorkersLeft(t *testing.T, build string) {
	t.Helper()
	out, err := exec.Command("ps", "-eo", "args").Output()
	if err != nil {
		t.Skipf("ps unavailable: %v", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, build) {
			t.Errorf("worker still running: %s", line)
		}
	}
}
