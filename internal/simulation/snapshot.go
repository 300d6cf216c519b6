// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package simulation

import (
	"slices"
	"time"

	"github.com/sustainable-computing-io/rtsim/internal/device"
	"github.com/sustainable-computing-io/rtsim/internal/sim"
)

// CPU is the state and power summary of one CPU at the end of a run
type CPU struct {
	Name      string  `json:"name"`
	Cluster   string  `json:"cluster"`
	OPP       int     `json:"opp"`
	Frequency uint64  `json:"frequencyMHz"`
	Voltage   float64 `json:"voltage"`
	Workload  string  `json:"workload"`

	Samples      uint64        `json:"samples"`
	Energy       device.Energy `json:"energyMicroJoules"`
	AveragePower device.Power  `json:"averagePowerMicroWatts"`
	PeakPower    device.Power  `json:"peakPowerMicroWatts"`
}

// Task is the outcome of one periodic task
type Task struct {
	Name     string   `json:"name"`
	CPU      string   `json:"cpu"`
	Period   sim.Tick `json:"period"`
	Deadline sim.Tick `json:"deadline"`

	Activations    uint64 `json:"activations"`
	Completions    uint64 `json:"completions"`
	DeadlineMisses uint64 `json:"deadlineMisses"`
	Aborts         uint64 `json:"aborts"`
	Preemptions    uint64 `json:"preemptions"`

	MaxLateness      sim.Tick `json:"maxLateness"`
	MaxResponseTime  sim.Tick `json:"maxResponseTime"`
	MeanResponseTime float64  `json:"meanResponseTime"`
}

// Snapshot is the result of one simulation run
type Snapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"` // wall time spent simulating

	Horizon      sim.Tick      `json:"horizon"`
	TickDuration time.Duration `json:"tickDuration"`
	Scheduler    string        `json:"scheduler"`
	Workload     string        `json:"workload,omitempty"`
	Events       uint64        `json:"events"`

	CPUs  []CPU  `json:"cpus"`
	Tasks []Task `json:"tasks"`
}

// Clone returns a copy that shares nothing with s
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.CPUs = slices.Clone(s.CPUs)
	c.Tasks = slices.Clone(s.Tasks)
	return &c
}

// TotalEnergy returns the energy drawn by every CPU
func (s *Snapshot) TotalEnergy() device.Energy {
	var total device.Energy
	for _, c := range s.CPUs {
		total += c.Energy
	}
	return total
}

// ClusterEnergy returns the energy drawn by the CPUs of cluster
func (s *Snapshot) ClusterEnergy(cluster string) device.Energy {
	var total device.Energy
	for _, c := range s.CPUs {
		if c.Cluster == cluster {
			total += c.Energy
		}
	}
	return total
}

// DeadlineMisses returns the deadline misses of every task
func (s *Snapshot) DeadlineMisses() uint64 {
	var total uint64
	for _, t := range s.Tasks {
		total += t.DeadlineMisses
	}
	return total
}

// FindCPU returns the CPU named name, if any
func (s *Snapshot) FindCPU(name string) (CPU, bool) {
	i := slices.IndexFunc(s.CPUs, func(c CPU) bool { return c.Name == name })
	if i < 0 {
		return CPU{}, false
	}
	return s.CPUs[i], true
}

// FindTask returns the task named name, if any
func (s *Snapshot) FindTask(name string) (Task, bool) {
	i := slices.IndexFunc(s.Tasks, func(t Task) bool { return t.Name == name })
	if i < 0 {
		return Task{}, false
	}
	return s.Tasks[i], true
}
