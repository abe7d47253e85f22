package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdynlb/simdynlb/sim"
	"github.com/simdynlb/simdynlb/sim/trace"
)

func smallConfig(t *testing.T) sim.SimConfig {
	t.Helper()
	fc, err := ParseConfig(strings.NewReader(validYAML))
	require.NoError(t, err)
	cfg := fc.SimConfig()
	cfg.Verify = true
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunSimulation_PrintsEveryIteration(t *testing.T) {
	// GIVEN a two-iteration configuration
	cfg := smallConfig(t)
	var buf bytes.Buffer

	// WHEN the simulation runs
	err := runSimulation(cfg, outputOptions{}, &buf)

	// THEN both iterations report their statistics
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "ITERATION: 0")
	assert.Contains(t, out, "ITERATION: 1")
	assert.Equal(t, 2, strings.Count(out, "=== Imbalance ==="))
	assert.Contains(t, out, "completed=true")
	assert.NotContains(t, out, "=== Trace Summary ===")
}

func TestRunSimulation_DecisionsTrace_PrintsSummary(t *testing.T) {
	// GIVEN decision tracing
	cfg := smallConfig(t)
	cfg.Iterations = 1
	cfg.TraceLevel = trace.TraceLevelDecisions
	var buf bytes.Buffer

	// WHEN the simulation runs
	require.NoError(t, runSimulation(cfg, outputOptions{}, &buf))

	// THEN the trace summary follows the statistics
	assert.Contains(t, buf.String(), "=== Trace Summary ===")
	assert.Contains(t, buf.String(), "Migrations arrived")
}

func TestRunSimulation_WritesCSVPerIteration(t *testing.T) {
	// GIVEN export paths and two iterations
	cfg := smallConfig(t)
	dir := t.TempDir()
	out := outputOptions{
		QueueCSV: filepath.Join(dir, "queues.csv"),
		TasksCSV: filepath.Join(dir, "tasks.csv"),
	}

	// WHEN the simulation runs
	require.NoError(t, runSimulation(cfg, out, &bytes.Buffer{}))

	// THEN each iteration writes its own files
	for _, name := range []string{"queues_iter0.csv", "queues_iter1.csv", "tasks_iter0.csv", "tasks_iter1.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	data, err := os.ReadFile(filepath.Join(dir, "tasks_iter0.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "rank,task_id,origin_rank,destination_rank,duration,start_time,end_time,migration_issued_at", lines[0])
	assert.Len(t, lines, 1+cfg.Topology.NumRanks*cfg.Topology.TasksPerRank)
}

func TestRunSimulation_UnwritableExport_Error(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Iterations = 1
	out := outputOptions{QueueCSV: filepath.Join(t.TempDir(), "missing", "queues.csv")}

	err := runSimulation(cfg, out, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating")
}

func TestIterationPath(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		iteration  int
		iterations int
		want       string
	}{
		{"empty stays empty", "", 1, 3, ""},
		{"single iteration unchanged", "out.csv", 0, 1, "out.csv"},
		{"suffix before extension", "out.csv", 2, 3, "out_iter2.csv"},
		{"no extension", "dir/out", 0, 2, "dir/out_iter0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, iterationPath(tc.path, tc.iteration, tc.iterations))
		})
	}
}

func TestApplyFlagOverrides_OnlyChangedFlags(t *testing.T) {
	// GIVEN a configuration and a command where only --seed was set
	cfg := smallConfig(t)
	cfg.Horizon = 99
	require.NoError(t, runCmd.Flags().Set("seed", "1234"))
	t.Cleanup(func() {
		_ = runCmd.Flags().Set("seed", "0")
		runCmd.Flags().Lookup("seed").Changed = false
	})

	// WHEN flag overrides are applied
	applyFlagOverrides(runCmd, &cfg)

	// THEN the seed changes and the horizon keeps its file value
	assert.Equal(t, int64(1234), cfg.Seed)
	assert.Equal(t, int64(99), cfg.Horizon)
	assert.Equal(t, trace.TraceLevelNone, cfg.TraceLevel)
}
