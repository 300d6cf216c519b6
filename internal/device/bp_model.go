// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import "fmt"

// BPModel is the regression used for the Odroid-XU3 big.LITTLE platform.
//
// Power, in watts, with V in volts and g the frequency in GHz:
//
//	P = p0·V + p1·V² + p2·V²·g + p3·V²·g²
//
// The first two terms model leakage, the last two dynamic switching.
//
// Computation rate, with x = f / fmax:
//
//	r = c0 + c1·x + c2·x² + c3·x³
//
// Non negative coefficients keep both functions monotonic non-decreasing
// in voltage and frequency.
type BPModel struct {
	workloadTable
}

var _ PowerModel = (*BPModel)(nil)

// NewBPModel returns a BPModel with no workloads registered
func NewBPModel() *BPModel {
	return &BPModel{workloadTable: newWorkloadTable()}
}

func (m *BPModel) Name() string {
	return BPModelKind
}

func (m *BPModel) SetWorkloadParams(label string, p PowerParams, c ComputationParams) error {
	if label == "" {
		return &InvalidParamsError{Reason: "workload label cannot be empty"}
	}
	for i, v := range p {
		if !validCoefficient(v) {
			return &InvalidParamsError{Workload: label, Reason: fmt.Sprintf("power coefficient %d is %g; must be >= 0", i, v)}
		}
	}
	sum := 0.0
	for i, v := range c {
		if !validCoefficient(v) {
			return &InvalidParamsError{Workload: label, Reason: fmt.Sprintf("computation coefficient %d is %g; must be >= 0", i, v)}
		}
		sum += v
	}
	if sum <= 0 {
		return &InvalidParamsError{Workload: label, Reason: "computation coefficients must not all be zero"}
	}

	m.set(label, p, c)
	return nil
}

func (m *BPModel) Power(v float64, f uint64, label string) (Power, error) {
	g := float64(f) / 1000
	return m.withIdleFloor(label, func(p PowerParams) float64 {
		v2 := v * v
		return p[0]*v + p[1]*v2 + p[2]*v2*g + p[3]*v2*g*g
	})
}

func (m *BPModel) ComputationRate(f, fmax uint64, label string) (float64, error) {
	wp, err := m.get(label)
	if err != nil {
		return 0, err
	}
	x, err := m.normalized(f, fmax)
	if err != nil {
		return 0, err
	}

	c := wp.comp
	rate := c[0] + x*(c[1]+x*(c[2]+x*c[3]))
	if rate <= 0 {
		return 0, &InvalidRateError{Workload: label, Frequency: f, Rate: rate}
	}
	return rate, nil
}
