// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
)

// ErrFrequencyMaxUnset is returned by rate queries made before the platform
// wide maximum frequency has been set
var ErrFrequencyMaxUnset = errors.New("maximum frequency not set")

// InvalidOperatingPointError is returned when an OPP index is outside the table of a CPU
type InvalidOperatingPointError struct {
	CPU   string
	Index int
	Count int
}

func (e *InvalidOperatingPointError) Error() string {
	return fmt.Sprintf("invalid operating point %d for cpu %s: valid range is [0, %d)", e.Index, e.CPU, e.Count)
}

// UnknownWorkloadError is returned when a workload label has no registered coefficients
type UnknownWorkloadError struct {
	Workload string
}

func (e *UnknownWorkloadError) Error() string {
	return fmt.Sprintf("unknown workload %q: no model parameters registered", e.Workload)
}

// InvalidParamsError is returned when a coefficient set would break the model invariants
type InvalidParamsError struct {
	Workload string
	Reason   string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid parameters for workload %q: %s", e.Workload, e.Reason)
}

// InvalidRateError is returned when a computation rate evaluates to a non positive value
type InvalidRateError struct {
	Workload  string
	Frequency uint64
	Rate      float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("computation rate of workload %q at %dMHz is %g; must be > 0", e.Workload, e.Frequency, e.Rate)
}
