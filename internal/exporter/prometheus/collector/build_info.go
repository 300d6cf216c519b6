// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/rtsim/internal/version"
)

const rtsimNS = "rtsim"

// BuildInfoCollector reports which rtsim binary produced the simulation
// metrics. The labels are read once; a binary does not change its build.
type BuildInfoCollector struct {
	desc   *prom.Desc
	labels []string
}

var _ prom.Collector = (*BuildInfoCollector)(nil)

func NewBuildInfoCollector() *BuildInfoCollector {
	info := version.Info()
	return &BuildInfoCollector{
		desc: prom.NewDesc(
			prom.BuildFQName(rtsimNS, "build", "info"),
			"Build of the rtsim simulator that ran the simulation; always 1",
			[]string{"version", "revision", "branch", "built", "goversion", "platform"},
			nil,
		),
		labels: []string{
			info.Version,
			unknownIfEmpty(info.GitCommit),
			unknownIfEmpty(info.GitBranch),
			unknownIfEmpty(info.BuildTime),
			info.GoVersion,
			info.GoOS + "/" + info.GoArch,
		},
	}
}

func (c *BuildInfoCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.desc
}

func (c *BuildInfoCollector) Collect(ch chan<- prom.Metric) {
	ch <- prom.MustNewConstMetric(c.desc, prom.GaugeValue, 1, c.labels...)
}

func unknownIfEmpty(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
