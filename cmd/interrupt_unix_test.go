//go:build unix

package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/bgjit/internal/result"
)

func TestInterruptWritesPartialReport(t *testing.T) {
	f := newFixture(t, "interrupt", "==", "!=", "<")

	out, err := execute(t, nil, "--config", f.cfgPath)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, 130, ExitCode(err))

	assert.Contains(t, out, "Progress: 2/3 - Testing !=, num=10, width=8\n")
	assert.NotContains(t, out, "Progress: 3/3")
	assert.NotContains(t, out, "test failed")
	assert.Contains(t, out, "\nSweep interrupted after 2 of 3 cells.\n")
	assert.Contains(t, out, "Total tests executed: 1\n")

	runDir, err := filepath.EvalSymlinks(filepath.Join(f.resultsDir, "latest"))
	require.NoError(t, err)
	meta, err := result.ReadRunMeta(filepath.Join(runDir, "meta.json"))
	require.NoError(t, err)
	assert.True(t, meta.Interrupted)
	assert.Equal(t, 1, meta.Records)

	out, err = execute(t, nil, "--config", f.cfgPath, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "interrupted")
}
