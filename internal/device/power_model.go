// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"math"
	"sort"
)

// IdleWorkload is the workload label a CPU runs when no task is dispatched.
// Its power evaluation is the floor of every other workload.
const IdleWorkload = "idle"

const (
	BPModelKind      = "bp"
	MinimalModelKind = "minimal"
)

type (
	// PowerParams are the four coefficients of a power regression
	PowerParams [4]float64

	// ComputationParams are the four coefficients of a computation rate regression
	ComputationParams [4]float64
)

// PowerModel maps an operating point and a workload label to instantaneous
// power and to the rate at which abstract work units complete
type PowerModel interface {
	// Name returns the kind of the regression
	Name() string

	// Power returns the power drawn at voltage v (volts) and frequency f (MHz)
	// while running label
	Power(v float64, f uint64, label string) (Power, error)

	// ComputationRate returns the work units completed per tick at frequency f
	// relative to fmax while running label
	ComputationRate(f, fmax uint64, label string) (float64, error)

	// SetWorkloadParams registers or overwrites the coefficients of label
	SetWorkloadParams(label string, p PowerParams, c ComputationParams) error

	HasWorkload(label string) bool
	Workloads() []string

	// SetFrequencyMax sets the platform wide normalization constant
	SetFrequencyMax(f uint64)
	FrequencyMax() uint64
}

// NewPowerModel returns an empty PowerModel of the given kind
func NewPowerModel(kind string) (PowerModel, error) {
	switch kind {
	case BPModelKind, "":
		return NewBPModel(), nil
	case MinimalModelKind:
		return NewMinimalModel(), nil
	default:
		return nil, fmt.Errorf("unknown power model: %s", kind)
	}
}

// ModelKinds returns the names accepted by NewPowerModel
func ModelKinds() []string {
	return []string{BPModelKind, MinimalModelKind}
}

type workloadParams struct {
	power PowerParams
	comp  ComputationParams
}

// workloadTable holds per workload coefficients and the normalization
// constant shared by every model variant
type workloadTable struct {
	params map[string]workloadParams
	fmax   uint64
}

func newWorkloadTable() workloadTable {
	return workloadTable{params: map[string]workloadParams{}}
}

func (t *workloadTable) set(label string, p PowerParams, c ComputationParams) {
	t.params[label] = workloadParams{power: p, comp: c}
}

func (t *workloadTable) get(label string) (workloadParams, error) {
	wp, ok := t.params[label]
	if !ok {
		return workloadParams{}, &UnknownWorkloadError{Workload: label}
	}
	return wp, nil
}

func (t *workloadTable) HasWorkload(label string) bool {
	_, ok := t.params[label]
	return ok
}

func (t *workloadTable) Workloads() []string {
	labels := make([]string, 0, len(t.params))
	for l := range t.params {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func (t *workloadTable) SetFrequencyMax(f uint64) {
	t.fmax = f
}

func (t *workloadTable) FrequencyMax() uint64 {
	return t.fmax
}

// withIdleFloor evaluates fn for label and, unless label is idle itself,
// raises the result to the idle evaluation
func (t *workloadTable) withIdleFloor(label string, fn func(PowerParams) float64) (Power, error) {
	wp, err := t.get(label)
	if err != nil {
		return 0, err
	}

	watts := fn(wp.power)
	if label != IdleWorkload {
		if idle, ok := t.params[IdleWorkload]; ok {
			watts = math.Max(watts, fn(idle.power))
		}
	}
	return Watts(watts), nil
}

func (t *workloadTable) normalized(f, fmax uint64) (float64, error) {
	if fmax == 0 {
		return 0, ErrFrequencyMaxUnset
	}
	return float64(f) / float64(fmax), nil
}

func validCoefficient(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
