// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"math"
)

// OperatingPoint is a (voltage, frequency) setting of a CPU.
// Voltage is in volts and Frequency in MHz.
type OperatingPoint struct {
	Voltage   float64
	Frequency uint64
}

func (o OperatingPoint) validate() error {
	if math.IsNaN(o.Voltage) || o.Voltage <= 0 {
		return fmt.Errorf("voltage must be > 0, got %g", o.Voltage)
	}
	if o.Frequency == 0 {
		return fmt.Errorf("frequency must be > 0")
	}
	return nil
}

func (o OperatingPoint) String() string {
	return fmt.Sprintf("%dMHz@%.4fV", o.Frequency, o.Voltage)
}

// GHz returns the frequency in GHz
func (o OperatingPoint) GHz() float64 {
	return float64(o.Frequency) / 1000
}
