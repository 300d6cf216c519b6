// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package simulation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/device"
	"github.com/sustainable-computing-io/rtsim/internal/kernel"
	"github.com/sustainable-computing-io/rtsim/internal/logger"
	"github.com/sustainable-computing-io/rtsim/internal/trace"
	"k8s.io/utils/ptr"
)

// testConfig is the default board running both tasks at the top operating
// point of their cluster. At 1400MHz the LITTLE task needs 138 ticks and
// misses its 100 tick deadline; at 2000MHz the big task needs 84.
func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Simulation.Horizon = 5000
	cfg.Cluster(config.LittleCluster).OPP = 12
	cfg.Cluster(config.BigCluster).OPP = 18
	cfg.Trace.OutputDir = dir
	require.NoError(t, cfg.Validate())
	return cfg
}

func buildAndRun(t *testing.T, cfg *config.Config) *Snapshot {
	t.Helper()
	p, err := Build(cfg, logger.Discard())
	require.NoError(t, err)
	snapshot, err := p.Run()
	require.NoError(t, err)
	return snapshot
}

func TestRunDefaultBoard(t *testing.T) {
	snapshot := buildAndRun(t, testConfig(t, ""))

	assert.Equal(t, "edf", snapshot.Scheduler)
	assert.EqualValues(t, 5000, snapshot.Horizon)
	require.Len(t, snapshot.CPUs, 8)
	require.Len(t, snapshot.Tasks, 2)
	assert.Equal(t, "LITTLE_0", snapshot.CPUs[0].Name)
	assert.Equal(t, "big_3", snapshot.CPUs[7].Name)

	t.Run("tasks", func(t *testing.T) {
		little, ok := snapshot.FindTask("Task_LITTLE_0")
		require.True(t, ok)
		assert.Equal(t, "LITTLE_0", little.CPU)
		assert.Equal(t, uint64(11), little.Activations) // 0, 500, ..., 5000
		assert.Equal(t, uint64(10), little.Completions)
		assert.Equal(t, uint64(10), little.DeadlineMisses)
		assert.Zero(t, little.Aborts)
		assert.EqualValues(t, 38, little.MaxLateness)

		big, ok := snapshot.FindTask("Task_big_0")
		require.True(t, ok)
		assert.Equal(t, uint64(11), big.Activations)
		assert.Equal(t, uint64(10), big.Completions)
		assert.Zero(t, big.DeadlineMisses)
		assert.EqualValues(t, 84, big.MaxResponseTime)
		assert.InDelta(t, 84.0, big.MeanResponseTime, 1e-9)

		assert.Equal(t, uint64(10), snapshot.DeadlineMisses())
	})

	t.Run("cpus", func(t *testing.T) {
		for _, c := range snapshot.CPUs {
			assert.Equal(t, uint64(5001), c.Samples, c.Name)
			assert.Positive(t, c.Energy, c.Name)
			assert.GreaterOrEqual(t, c.PeakPower, c.AveragePower, c.Name)
		}

		busy, _ := snapshot.FindCPU("big_0")
		idle, _ := snapshot.FindCPU("big_1")
		idle2, _ := snapshot.FindCPU("big_2")
		assert.Greater(t, busy.Energy, idle.Energy)
		assert.Equal(t, idle.Energy, idle2.Energy)
		assert.InDelta(t, idle.PeakPower.MicroWatts(), idle.AveragePower.MicroWatts(), 1e-3)
		assert.Equal(t, 18, busy.OPP)
		assert.Equal(t, uint64(2000), busy.Frequency)
		assert.Equal(t, "big", busy.Cluster)

		little, _ := snapshot.FindCPU("LITTLE_0")
		assert.Equal(t, uint64(1400), little.Frequency)
		assert.Equal(t, "LITTLE", little.Cluster)

		assert.Equal(t, snapshot.TotalEnergy(),
			snapshot.ClusterEnergy(config.LittleCluster)+snapshot.ClusterEnergy(config.BigCluster))
	})
}

func TestRunFullHorizonScenarios(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cluster(config.LittleCluster).OPP = 0
	cfg.Cluster(config.BigCluster).OPP = 18
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 50000, cfg.Simulation.Horizon)

	snapshot := buildAndRun(t, cfg)

	t.Run("big core at its top operating point meets every deadline", func(t *testing.T) {
		big, ok := snapshot.FindTask("Task_big_0")
		require.True(t, ok)
		// the job released on the horizon is still running
		assert.Equal(t, uint64(101), big.Activations)
		assert.Equal(t, uint64(100), big.Completions)
		assert.Zero(t, big.DeadlineMisses)
		assert.Zero(t, big.Aborts)
	})

	t.Run("LITTLE core at its lowest operating point misses every deadline", func(t *testing.T) {
		little, ok := snapshot.FindTask("Task_LITTLE_0")
		require.True(t, ok)
		// 100 units at about 0.095 units per tick never fit in a period
		assert.Equal(t, uint64(101), little.Activations)
		assert.Equal(t, uint64(100), little.DeadlineMisses)
		assert.Equal(t, uint64(100), little.Aborts)
		assert.Zero(t, little.Completions)
	})

	t.Run("energy covers the horizon once", func(t *testing.T) {
		idle, ok := snapshot.FindCPU("big_1")
		require.True(t, ok)
		assert.Equal(t, uint64(50001), idle.Samples)
		want := idle.AveragePower.Over(50000 * time.Millisecond)
		assert.InDelta(t, float64(want), float64(idle.Energy), 1)
	})
}

func TestBuildGivesEachCPUItsOwnModel(t *testing.T) {
	p, err := Build(testConfig(t, ""), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	cpus := p.CPUs()
	require.Len(t, cpus, 8)
	for i, a := range cpus {
		assert.Equal(t, uint64(2000), a.Model().FrequencyMax(), a.Name())
		for _, b := range cpus[i+1:] {
			assert.NotSame(t, a.Model(), b.Model(), "%s and %s", a.Name(), b.Name())
		}
	}

	// changing one model leaves its neighbours untouched
	little0, little1 := cpus[0], cpus[1]
	before, err := little1.CurrentPower()
	require.NoError(t, err)
	require.NoError(t, little0.Model().SetWorkloadParams(device.IdleWorkload,
		device.PowerParams{5, 5, 5, 5}, device.ComputationParams{1}))

	after, err := little1.CurrentPower()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	changed, err := little0.CurrentPower()
	require.NoError(t, err)
	assert.Greater(t, changed, before)
}

func TestRunWritesTraces(t *testing.T) {
	dir := t.TempDir()
	snapshot := buildAndRun(t, testConfig(t, dir))

	text, err := os.ReadFile(filepath.Join(dir, TextTraceFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text),
		"[0]\tTask_LITTLE_0\tarrival\n"+
			"[0]\tTask_big_0\tarrival\n"+
			"[0]\tTask_LITTLE_0\tdispatch\n"+
			"[0]\tTask_big_0\tdispatch\n"), string(text[:min(len(text), 200)]))
	assert.Contains(t, string(text), "[100]\tTask_LITTLE_0\tdeadline-miss\n")
	assert.Contains(t, string(text), "[138]\tTask_LITTLE_0\tend\tlateness=38\n")
	assert.Contains(t, string(text), "[84]\tTask_big_0\tend\n")

	data, err := os.ReadFile(filepath.Join(dir, JSONTraceFile))
	require.NoError(t, err)
	var records []trace.Record
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, strings.Count(string(text), "\n"))

	for _, c := range snapshot.CPUs {
		data, err := os.ReadFile(filepath.Join(dir, PowerTraceFile(c.Name)))
		require.NoError(t, err, c.Name)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Equal(t, "time,cpu,power_w,workload,frequency_mhz,voltage", lines[0])
		assert.Len(t, lines, int(c.Samples)+1, c.Name)
	}
}

func TestRunTraceLevelsAndSwitches(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Trace.Levels = config.TraceDeadlineMiss
	cfg.Trace.JSON = ptr.To(false)
	cfg.Trace.Power.Enabled = ptr.To(false)

	snapshot := buildAndRun(t, cfg)

	text, err := os.ReadFile(filepath.Join(dir, TextTraceFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(text)), "\n")
	assert.Len(t, lines, 10)
	for _, l := range lines {
		assert.Contains(t, l, "\tdeadline-miss")
	}

	assert.NoFileExists(t, filepath.Join(dir, JSONTraceFile))
	assert.NoFileExists(t, filepath.Join(dir, PowerTraceFile("big_0")))

	// energy is integrated without the CSV files
	assert.Positive(t, snapshot.TotalEnergy())
}

func TestRunIsDeterministic(t *testing.T) {
	dirs := []string{t.TempDir(), t.TempDir()}
	var snapshots []*Snapshot
	for _, dir := range dirs {
		snapshots = append(snapshots, buildAndRun(t, testConfig(t, dir)))
	}
	assert.Equal(t, snapshots[0], snapshots[1])

	for _, name := range []string{TextTraceFile, JSONTraceFile, PowerTraceFile("LITTLE_0"), PowerTraceFile("big_0")} {
		a, err := os.ReadFile(filepath.Join(dirs[0], name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirs[1], name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestRunWorkloadOverride(t *testing.T) {
	base := buildAndRun(t, testConfig(t, ""))

	cfg := testConfig(t, "")
	cfg.Simulation.Workload = "cachekiller"
	require.NoError(t, cfg.Validate())
	overridden := buildAndRun(t, cfg)

	assert.Equal(t, "cachekiller", overridden.Workload)
	b, _ := base.FindCPU("big_0")
	o, _ := overridden.FindCPU("big_0")
	assert.NotEqual(t, b.Energy, o.Energy)
}

func TestRunDVFS(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.DVFS = []config.DVFSStep{
		{At: 1000, CPU: "big_0", OPP: 0},
		{At: 2000, CPU: "LITTLE_1", OPP: 3},
	}
	require.NoError(t, cfg.Validate())

	snapshot := buildAndRun(t, cfg)
	big, _ := snapshot.FindCPU("big_0")
	assert.Equal(t, 0, big.OPP)
	assert.Equal(t, uint64(200), big.Frequency)

	little, _ := snapshot.FindCPU("LITTLE_1")
	assert.Equal(t, 3, little.OPP)

	// big_0 is far too slow at 200MHz for a 100 tick deadline
	task, _ := snapshot.FindTask("Task_big_0")
	assert.Positive(t, task.DeadlineMisses)
}

func TestRunRateMonotonic(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Simulation.Scheduler = "rm"
	snapshot := buildAndRun(t, cfg)
	assert.Equal(t, "rm", snapshot.Scheduler)

	task, _ := snapshot.FindTask("Task_big_0")
	assert.Equal(t, uint64(10), task.Completions)
}

func TestBuildErrors(t *testing.T) {
	tt := []struct {
		name   string
		mutate func(*config.Config)
		is     error
	}{{
		name:   "unknown cpu",
		mutate: func(c *config.Config) { c.Tasks[0].CPU = "LITTLE_9" },
	}, {
		name:   "migration",
		mutate: func(c *config.Config) { c.Tasks[0].Migration = "LITTLE_1" },
		is:     kernel.ErrMigrationUnsupported,
	}, {
		name:   "unknown workload",
		mutate: func(c *config.Config) { c.Tasks[0].Code = "fixed(10,nope);" },
	}, {
		name:   "unknown scheduler",
		mutate: func(c *config.Config) { c.Simulation.Scheduler = "fifo" },
	}, {
		name:   "dvfs on unknown cpu",
		mutate: func(c *config.Config) { c.DVFS = []config.DVFSStep{{At: 1, CPU: "x"}} },
	}, {
		name:   "missing workloads file",
		mutate: func(c *config.Config) { c.Platform.Clusters[0].WorkloadsFile = "/does/not/exist.csv" },
	}, {
		name:   "invalid initial operating point",
		mutate: func(c *config.Config) { c.Platform.Clusters[1].OPP = 42 },
	}}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			p, err := Build(cfg, logger.Discard())
			assert.Error(t, err)
			assert.Nil(t, p)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestRunTwice(t *testing.T) {
	p, err := Build(testConfig(t, ""), logger.Discard())
	require.NoError(t, err)
	_, err = p.Run()
	require.NoError(t, err)

	_, err = p.Run()
	assert.Error(t, err)
	assert.NoError(t, p.Close())
}

func TestBuildWithWorkloadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solo.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"workload,p0,p1,p2,p3,c0,c1,c2,c3\n"+
			"idle,0.1,0,0,0,1,0,0,0\n"+
			"spin,1,0,0,0,2,0,0,0\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Simulation.Horizon = 100
	cfg.Platform.Clusters = []config.Cluster{{
		Name:            "solo",
		CPUs:            1,
		OperatingPoints: []config.OperatingPoint{{Voltage: 1, Frequency: 1000}},
		WorkloadsFile:   path,
	}}
	cfg.Tasks = []config.Task{{Name: "spinner", CPU: "solo_0", Period: 10, Code: "fixed(10,spin);"}}
	require.NoError(t, cfg.Validate())

	p, err := Build(cfg, logger.Discard())
	require.NoError(t, err)
	assert.True(t, p.CPUs()[0].Model().HasWorkload("spin"))
	assert.Equal(t, uint64(1000), p.CPUs()[0].Model().FrequencyMax())
	require.NotNil(t, p.Kernel("solo_0"))
	assert.Nil(t, p.Kernel("solo_1"))

	snapshot, err := p.Run()
	require.NoError(t, err)

	// 10 units at rate 2 take 5 of every 10 ticks: 1W half the time, 0.1W otherwise
	task, _ := snapshot.FindTask("spinner")
	assert.Equal(t, uint64(10), task.Completions)
	assert.EqualValues(t, 5, task.MaxResponseTime)

	cpu, _ := snapshot.FindCPU("solo_0")
	assert.InDelta(t, 0.55, cpu.AveragePower.Watts(), 0.01)
	assert.Equal(t, device.Watts(1), cpu.PeakPower)
}
