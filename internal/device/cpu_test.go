// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// big cluster of an Odroid-XU3, in table order
var bigOPPs = []OperatingPoint{
	{0.916319, 200}, {0.915475, 300}, {0.915102, 400}, {0.91498, 500},
	{0.91502, 600}, {0.90375, 700}, {0.916562, 800}, {0.942543, 900},
	{0.96877, 1000}, {0.994941, 1100}, {1.02094, 1200}, {1.04648, 1300},
	{1.05995, 1400}, {1.08583, 1500}, {1.12384, 1600}, {1.16325, 1700},
	{1.20235, 1800}, {1.2538, 1900}, {1.33287, 2000},
}

func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	cpu, err := NewCPU("big_0", bigOPPs, newTestModel(t, BPModelKind))
	require.NoError(t, err)
	return cpu
}

func TestNewCPU(t *testing.T) {
	t.Run("starts idle at the lowest operating point", func(t *testing.T) {
		cpu := newTestCPU(t)
		assert.Equal(t, "big_0", cpu.Name())
		assert.Equal(t, 0, cpu.OPP())
		assert.Equal(t, uint64(200), cpu.Frequency())
		assert.Equal(t, IdleWorkload, cpu.Workload())
		assert.Equal(t, uint64(2000), cpu.MaxFrequency())
		assert.Len(t, cpu.OPPs(), 19)
	})

	t.Run("sorts the table by frequency", func(t *testing.T) {
		cpu, err := NewCPU("c", []OperatingPoint{{1.2, 1400}, {0.9, 200}, {1.0, 800}}, NewBPModel())
		require.NoError(t, err)
		assert.Equal(t, []OperatingPoint{{0.9, 200}, {1.0, 800}, {1.2, 1400}}, cpu.OPPs())
	})

	t.Run("does not alias the caller's table", func(t *testing.T) {
		table := []OperatingPoint{{1.0, 800}, {0.9, 200}}
		_, err := NewCPU("c", table, NewBPModel())
		require.NoError(t, err)
		assert.Equal(t, uint64(800), table[0].Frequency)
	})

	tests := []struct {
		name  string
		cpu   string
		opps  []OperatingPoint
		model PowerModel
	}{
		{"empty name", "", bigOPPs, NewBPModel()},
		{"nil model", "c", bigOPPs, nil},
		{"empty table", "c", nil, NewBPModel()},
		{"zero voltage", "c", []OperatingPoint{{0, 200}}, NewBPModel()},
		{"zero frequency", "c", []OperatingPoint{{1, 0}}, NewBPModel()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCPU(tc.cpu, tc.opps, tc.model)
			assert.Error(t, err)
		})
	}
}

func TestCPUSetOPP(t *testing.T) {
	cpu := newTestCPU(t)

	require.NoError(t, cpu.SetOPP(18))
	assert.Equal(t, uint64(2000), cpu.Frequency())
	assert.Equal(t, 1.33287, cpu.Voltage())

	for _, idx := range []int{-1, 19, 100} {
		err := cpu.SetOPP(idx)
		var invalid *InvalidOperatingPointError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, idx, invalid.Index)
		assert.Equal(t, 19, invalid.Count)
		assert.Equal(t, "big_0", invalid.CPU)
	}
	assert.Equal(t, 18, cpu.OPP(), "failed calls leave the operating point unchanged")
}

func TestCPUSetWorkload(t *testing.T) {
	cpu := newTestCPU(t)

	require.NoError(t, cpu.SetWorkload("bzip2"))
	assert.Equal(t, "bzip2", cpu.Workload())

	err := cpu.SetWorkload("unregistered")
	var unknown *UnknownWorkloadError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "bzip2", cpu.Workload())
}

func TestCPUCurrentSpeedIsMonotonic(t *testing.T) {
	cpu := newTestCPU(t)
	require.NoError(t, cpu.SetWorkload("bzip2"))

	prev := 0.0
	for i := range cpu.OPPs() {
		require.NoError(t, cpu.SetOPP(i))
		speed, err := cpu.CurrentSpeed()
		require.NoError(t, err)
		assert.Greater(t, speed, prev, "opp %d", i)
		prev = speed
	}
	assert.Greater(t, prev, 1.0)
}

func TestCPUCurrentPower(t *testing.T) {
	cpu := newTestCPU(t)
	require.NoError(t, cpu.SetOPP(18))

	idle, err := cpu.CurrentPower()
	require.NoError(t, err)

	require.NoError(t, cpu.SetWorkload("bzip2"))
	busy, err := cpu.CurrentPower()
	require.NoError(t, err)
	assert.Greater(t, busy, idle)

	// takes effect immediately
	require.NoError(t, cpu.SetOPP(0))
	low, err := cpu.CurrentPower()
	require.NoError(t, err)
	assert.Less(t, low, busy)
}
