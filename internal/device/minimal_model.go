// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import "fmt"

// MinimalModel is a first order CMOS model: a static term plus C·V²·f.
//
//	P = p0 + p1·V²·g   (g in GHz, p2 and p3 unused)
//	r = c0·f/fmax      (c1..c3 unused)
//
// It is useful when only a rough per workload capacitance is known.
type MinimalModel struct {
	workloadTable
}

var _ PowerModel = (*MinimalModel)(nil)

func NewMinimalModel() *MinimalModel {
	return &MinimalModel{workloadTable: newWorkloadTable()}
}

func (m *MinimalModel) Name() string {
	return MinimalModelKind
}

func (m *MinimalModel) SetWorkloadParams(label string, p PowerParams, c ComputationParams) error {
	if label == "" {
		return &InvalidParamsError{Reason: "workload label cannot be empty"}
	}
	for i, v := range p[:2] {
		if !validCoefficient(v) {
			return &InvalidParamsError{Workload: label, Reason: fmt.Sprintf("power coefficient %d is %g; must be >= 0", i, v)}
		}
	}
	if !validCoefficient(c[0]) || c[0] == 0 {
		return &InvalidParamsError{Workload: label, Reason: fmt.Sprintf("computation coefficient 0 is %g; must be > 0", c[0])}
	}

	m.set(label, p, c)
	return nil
}

func (m *MinimalModel) Power(v float64, f uint64, label string) (Power, error) {
	g := float64(f) / 1000
	return m.withIdleFloor(label, func(p PowerParams) float64 {
		return p[0] + p[1]*v*v*g
	})
}

func (m *MinimalModel) ComputationRate(f, fmax uint64, label string) (float64, error) {
	wp, err := m.get(label)
	if err != nil {
		return 0, err
	}
	x, err := m.normalized(f, fmax)
	if err != nil {
		return 0, err
	}

	rate := wp.comp[0] * x
	if rate <= 0 {
		return 0, &InvalidRateError{Workload: label, Frequency: f, Rate: rate}
	}
	return rate, nil
}
