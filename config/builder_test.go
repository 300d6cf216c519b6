// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

func TestBuilder(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := (&Builder{}).Build()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("later documents win", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge(`
simulation:
  horizon: 1000
exporter:
  stdout:
    enabled: false
`, `
simulation:
  horizon: 3000
  scheduler: rm
`).Build()
		require.NoError(t, err)

		assert.Equal(t, int64(3000), cfg.Simulation.Horizon)
		assert.Equal(t, "rm", cfg.Simulation.Scheduler)
		assert.False(t, *cfg.Exporter.Stdout.Enabled, "explicit false overrides the default")
		assert.True(t, *cfg.Trace.Power.Enabled, "unset bools keep their value")
	})

	t.Run("tasks are replaced as a whole", func(t *testing.T) {
		cfg, err := (&Builder{}).Merge(`
tasks:
  - {name: only, cpu: big_2, period: 40, code: "fixed(5,hash);"}
`).Build()
		require.NoError(t, err)
		require.Len(t, cfg.Tasks, 1)
		assert.Equal(t, "only", cfg.Tasks[0].Name)
	})

	t.Run("files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "override.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

		cfg, err := (&Builder{}).Use(DefaultConfig()).MergeFiles(path).Build()
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&Builder{}).MergeFiles("/non/existent.yaml").Build()
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("parse errors are joined", func(t *testing.T) {
		_, err := (&Builder{}).Merge("log: [", "simulation: {horizon: x}").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log: [")
		assert.Contains(t, err.Error(), "horizon: x")
	})

	t.Run("merged config is validated", func(t *testing.T) {
		base := DefaultConfig()
		base.Web.Enabled = ptr.To(true)
		_, err := (&Builder{}).Use(base).Merge("web:\n  listenAddresses: [nowhere]\n").Build()
		assert.ErrorContains(t, err, "invalid configuration")
	})
}
