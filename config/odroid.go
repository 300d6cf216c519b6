// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import "github.com/sustainable-computing-io/rtsim/internal/device"

// Operating points of the Odroid-XU3 (Exynos 5422). Voltages are the
// measured averages of each frequency step.
var (
	odroidLittleVoltages = []float64{
		0.92, 0.919643, 0.919357, 0.918924, 0.95625, 0.9925, 1.02993,
		1.0475, 1.08445, 1.12125, 1.15779, 1.2075, 1.25625,
	}
	odroidBigVoltages = []float64{
		0.916319, 0.915475, 0.915102, 0.91498, 0.91502, 0.90375, 0.916562,
		0.942543, 0.96877, 0.994941, 1.02094, 1.04648, 1.05995, 1.08583,
		1.12384, 1.16325, 1.20235, 1.2538, 1.33287,
	}
)

// operatingPoints pairs voltages with frequencies starting at 200MHz in 100MHz steps
func operatingPoints(voltages []float64) []OperatingPoint {
	opps := make([]OperatingPoint, len(voltages))
	for i, v := range voltages {
		opps[i] = OperatingPoint{Voltage: v, Frequency: uint64(200 + 100*i)}
	}
	return opps
}

func odroidLittle() Cluster {
	return Cluster{
		Name:            LittleCluster,
		CPUs:            4,
		Model:           device.BPModelKind,
		OperatingPoints: operatingPoints(odroidLittleVoltages),
		Workloads: map[string]Coefficients{
			device.IdleWorkload: {Power: []float64{0.02, 0.01, 0.04, 0}, Computation: []float64{1, 0, 0, 0}},
			"bzip2":             {Power: []float64{0.02, 0.02, 0.12, 0.02}, Computation: []float64{0.03, 0.6, 0.5, 0.1}},
			"hash":              {Power: []float64{0.02, 0.02, 0.14, 0.01}, Computation: []float64{0.01, 0.7, 0.4, 0.05}},
			"encrypt":           {Power: []float64{0.02, 0.02, 0.13, 0.015}, Computation: []float64{0.01, 0.65, 0.4, 0.05}},
			"decrypt":           {Power: []float64{0.02, 0.02, 0.125, 0.015}, Computation: []float64{0.01, 0.65, 0.38, 0.05}},
			"cachekiller":       {Power: []float64{0.02, 0.03, 0.10, 0.03}, Computation: []float64{0.2, 0.4, 0.1, 0}},
		},
	}
}

func odroidBig() Cluster {
	return Cluster{
		Name:            BigCluster,
		CPUs:            4,
		Model:           device.BPModelKind,
		OperatingPoints: operatingPoints(odroidBigVoltages),
		Workloads: map[string]Coefficients{
			device.IdleWorkload: {Power: []float64{0.05, 0.05, 0.15, 0}, Computation: []float64{1, 0, 0, 0}},
			"bzip2":             {Power: []float64{0.05, 0.1, 0.6, 0.1}, Computation: []float64{0.05, 0.45, 0.45, 0.25}},
			"hash":              {Power: []float64{0.05, 0.1, 0.7, 0.08}, Computation: []float64{0.02, 0.9, 0.3, 0.1}},
			"encrypt":           {Power: []float64{0.05, 0.1, 0.65, 0.09}, Computation: []float64{0.02, 0.8, 0.3, 0.1}},
			"decrypt":           {Power: []float64{0.05, 0.1, 0.62, 0.09}, Computation: []float64{0.02, 0.8, 0.28, 0.1}},
			"cachekiller":       {Power: []float64{0.05, 0.15, 0.45, 0.12}, Computation: []float64{0.3, 0.5, 0.1, 0}},
		},
	}
}
