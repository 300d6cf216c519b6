// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/rtsim/internal/simulation"
)

type SnapshotProvider = simulation.SnapshotProvider

// SimulationCollector exports the snapshot of a simulation: per CPU energy and
// power, per task counters and the run itself
type SimulationCollector struct {
	provider SnapshotProvider
	logger   *slog.Logger

	mutex sync.Mutex
	ready bool

	cpuJoulesDesc    *prometheus.Desc
	cpuAvgWattsDesc  *prometheus.Desc
	cpuPeakWattsDesc *prometheus.Desc
	cpuFreqDesc      *prometheus.Desc
	cpuOPPDesc       *prometheus.Desc

	taskActivationsDesc *prometheus.Desc
	taskCompletionsDesc *prometheus.Desc
	taskMissesDesc      *prometheus.Desc
	taskAbortsDesc      *prometheus.Desc
	taskPreemptionsDesc *prometheus.Desc
	taskLatenessDesc    *prometheus.Desc
	taskResponseDesc    *prometheus.Desc

	eventsDesc  *prometheus.Desc
	horizonDesc *prometheus.Desc
	elapsedDesc *prometheus.Desc
}

func cpuDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(rtsimNS, "cpu", name),
		help,
		[]string{"cpu", "cluster"}, nil)
}

func taskDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(rtsimNS, "task", name),
		help,
		[]string{"task", "cpu"}, nil)
}

func taskCounterDesc(event string) *prometheus.Desc {
	return taskDesc(event+"_total", fmt.Sprintf("Number of %s of a periodic task", event))
}

// NewSimulationCollector creates a collector reading snapshots from provider.
// Nothing is collected until provider signals data, so that a scrape never
// starts a simulation.
func NewSimulationCollector(provider SnapshotProvider, logger *slog.Logger) *SimulationCollector {
	return &SimulationCollector{
		provider: provider,
		logger:   logger.With("collector", "simulation"),

		cpuJoulesDesc:    cpuDesc("energy_joules_total", "Energy drawn by a CPU over the simulated horizon in joules"),
		cpuAvgWattsDesc:  cpuDesc("average_watts", "Average power of a CPU over the simulated horizon in watts"),
		cpuPeakWattsDesc: cpuDesc("peak_watts", "Highest sampled power of a CPU in watts"),
		cpuFreqDesc:      cpuDesc("frequency_hertz", "Frequency of a CPU at the end of the run in hertz"),
		cpuOPPDesc:       cpuDesc("operating_point", "Operating point index of a CPU at the end of the run"),

		taskActivationsDesc: taskCounterDesc("activations"),
		taskCompletionsDesc: taskCounterDesc("completions"),
		taskMissesDesc:      taskCounterDesc("deadline_misses"),
		taskAbortsDesc:      taskCounterDesc("aborts"),
		taskPreemptionsDesc: taskCounterDesc("preemptions"),
		taskLatenessDesc:    taskDesc("max_lateness_ticks", "Largest lateness of a job of a periodic task in ticks"),
		taskResponseDesc:    taskDesc("max_response_ticks", "Largest response time of a job of a periodic task in ticks"),

		eventsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(rtsimNS, "simulation", "events_total"),
			"Number of events fired by the simulation engine",
			[]string{"scheduler"}, nil),
		horizonDesc: prometheus.NewDesc(
			prometheus.BuildFQName(rtsimNS, "simulation", "horizon_ticks"),
			"Simulated horizon in ticks",
			[]string{"scheduler"}, nil),
		elapsedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(rtsimNS, "simulation", "duration_seconds"),
			"Wall time spent simulating in seconds",
			[]string{"scheduler"}, nil),
	}
}

// Describe implements the prometheus.Collector interface
func (c *SimulationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpuJoulesDesc
	ch <- c.cpuAvgWattsDesc
	ch <- c.cpuPeakWattsDesc
	ch <- c.cpuFreqDesc
	ch <- c.cpuOPPDesc

	ch <- c.taskActivationsDesc
	ch <- c.taskCompletionsDesc
	ch <- c.taskMissesDesc
	ch <- c.taskAbortsDesc
	ch <- c.taskPreemptionsDesc
	ch <- c.taskLatenessDesc
	ch <- c.taskResponseDesc

	ch <- c.eventsDesc
	ch <- c.horizonDesc
	ch <- c.elapsedDesc
}

func (c *SimulationCollector) isReady() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.ready {
		select {
		case <-c.provider.DataChannel():
			c.ready = true
		default:
		}
	}
	return c.ready
}

// Collect implements the prometheus.Collector interface
func (c *SimulationCollector) Collect(ch chan<- prometheus.Metric) {
	if !c.isReady() {
		c.logger.Debug("Collect called before the simulation finished")
		return
	}

	snapshot, err := c.provider.Snapshot()
	if err != nil {
		c.logger.Error("Failed to get simulation snapshot", "error", err)
		return
	}

	c.collectCPUMetrics(ch, snapshot.CPUs)
	c.collectTaskMetrics(ch, snapshot.Tasks)

	ch <- prometheus.MustNewConstMetric(c.eventsDesc, prometheus.CounterValue,
		float64(snapshot.Events), snapshot.Scheduler)
	ch <- prometheus.MustNewConstMetric(c.horizonDesc, prometheus.GaugeValue,
		float64(snapshot.Horizon), snapshot.Scheduler)
	ch <- prometheus.MustNewConstMetric(c.elapsedDesc, prometheus.GaugeValue,
		snapshot.Elapsed.Seconds(), snapshot.Scheduler)
}

func (c *SimulationCollector) collectCPUMetrics(ch chan<- prometheus.Metric, cpus []simulation.CPU) {
	for _, cpu := range cpus {
		ch <- prometheus.MustNewConstMetric(
			c.cpuJoulesDesc,
			prometheus.CounterValue,
			cpu.Energy.Joules(),
			cpu.Name, cpu.Cluster,
		)
		ch <- prometheus.MustNewConstMetric(
			c.cpuAvgWattsDesc,
			prometheus.GaugeValue,
			cpu.AveragePower.Watts(),
			cpu.Name, cpu.Cluster,
		)
		ch <- prometheus.MustNewConstMetric(
			c.cpuPeakWattsDesc,
			prometheus.GaugeValue,
			cpu.PeakPower.Watts(),
			cpu.Name, cpu.Cluster,
		)
		ch <- prometheus.MustNewConstMetric(
			c.cpuFreqDesc,
			prometheus.GaugeValue,
			float64(cpu.Frequency)*1e6,
			cpu.Name, cpu.Cluster,
		)
		ch <- prometheus.MustNewConstMetric(
			c.cpuOPPDesc,
			prometheus.GaugeValue,
			float64(cpu.OPP),
			cpu.Name, cpu.Cluster,
		)
	}
}

func (c *SimulationCollector) collectTaskMetrics(ch chan<- prometheus.Metric, tasks []simulation.Task) {
	counter := func(desc *prometheus.Desc, v uint64, t simulation.Task) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), t.Name, t.CPU)
	}
	for _, t := range tasks {
		counter(c.taskActivationsDesc, t.Activations, t)
		counter(c.taskCompletionsDesc, t.Completions, t)
		counter(c.taskMissesDesc, t.DeadlineMisses, t)
		counter(c.taskAbortsDesc, t.Aborts, t)
		counter(c.taskPreemptionsDesc, t.Preemptions, t)

		ch <- prometheus.MustNewConstMetric(c.taskLatenessDesc, prometheus.GaugeValue,
			float64(t.MaxLateness), t.Name, t.CPU)
		ch <- prometheus.MustNewConstMetric(c.taskResponseDesc, prometheus.GaugeValue,
			float64(t.MaxResponseTime), t.Name, t.CPU)
	}
}
