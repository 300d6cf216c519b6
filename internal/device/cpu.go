// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
	"slices"
)

// CPU is one simulated core. It owns an ascending table of operating points
// and the PowerModel used to answer power and speed queries.
type CPU struct {
	name     string
	opps     []OperatingPoint
	opp      int
	workload string
	model    PowerModel
}

// NewCPU creates a CPU running the idle workload at its lowest operating point.
// The table is sorted by frequency; it must not be empty.
func NewCPU(name string, opps []OperatingPoint, model PowerModel) (*CPU, error) {
	if name == "" {
		return nil, errors.New("cpu name cannot be empty")
	}
	if model == nil {
		return nil, fmt.Errorf("cpu %s: power model cannot be nil", name)
	}
	if len(opps) == 0 {
		return nil, fmt.Errorf("cpu %s: operating point table is empty", name)
	}

	table := slices.Clone(opps)
	for i, o := range table {
		if err := o.validate(); err != nil {
			return nil, fmt.Errorf("cpu %s: operating point %d: %w", name, i, err)
		}
	}
	slices.SortStableFunc(table, func(a, b OperatingPoint) int {
		switch {
		case a.Frequency < b.Frequency:
			return -1
		case a.Frequency > b.Frequency:
			return 1
		}
		return 0
	})

	return &CPU{
		name:     name,
		opps:     table,
		workload: IdleWorkload,
		model:    model,
	}, nil
}

func (c *CPU) Name() string {
	return c.name
}

func (c *CPU) Model() PowerModel {
	return c.model
}

// OPPs returns a copy of the operating point table
func (c *CPU) OPPs() []OperatingPoint {
	return slices.Clone(c.opps)
}

// OPP returns the current operating point index
func (c *CPU) OPP() int {
	return c.opp
}

func (c *CPU) OperatingPoint() OperatingPoint {
	return c.opps[c.opp]
}

func (c *CPU) Voltage() float64 {
	return c.opps[c.opp].Voltage
}

func (c *CPU) Frequency() uint64 {
	return c.opps[c.opp].Frequency
}

// MaxFrequency returns the highest frequency in the table
func (c *CPU) MaxFrequency() uint64 {
	return c.opps[len(c.opps)-1].Frequency
}

func (c *CPU) Workload() string {
	return c.workload
}

// SetOPP switches to the operating point at index i. There is no transition latency.
func (c *CPU) SetOPP(i int) error {
	if i < 0 || i >= len(c.opps) {
		return &InvalidOperatingPointError{CPU: c.name, Index: i, Count: len(c.opps)}
	}
	c.opp = i
	return nil
}

// SetWorkload changes the workload label used by the next power and speed queries
func (c *CPU) SetWorkload(label string) error {
	if !c.model.HasWorkload(label) {
		return &UnknownWorkloadError{Workload: label}
	}
	c.workload = label
	return nil
}

// CurrentPower returns the power drawn at the current operating point and workload
func (c *CPU) CurrentPower() (Power, error) {
	o := c.opps[c.opp]
	return c.model.Power(o.Voltage, o.Frequency, c.workload)
}

// CurrentSpeed returns the work units completed per tick at the current
// operating point and workload
func (c *CPU) CurrentSpeed() (float64, error) {
	return c.model.ComputationRate(c.opps[c.opp].Frequency, c.model.FrequencyMax(), c.workload)
}

func (c *CPU) String() string {
	return fmt.Sprintf("%s[%s %s]", c.name, c.opps[c.opp], c.workload)
}
