// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/sustainable-computing-io/rtsim/internal/device"
	"github.com/sustainable-computing-io/rtsim/internal/sim"
)

// Sample is one reading of the power drawn by a CPU
type Sample struct {
	Time      sim.Tick `csv:"time"`
	CPU       string   `csv:"cpu"`
	Power     float64  `csv:"power_w"`
	Workload  string   `csv:"workload"`
	Frequency uint64   `csv:"frequency_mhz"`
	Voltage   float64  `csv:"voltage"`
}

// PowerStats summarizes the samples of one CPU
type PowerStats struct {
	CPU     string
	Samples uint64
	Energy  device.Energy
	Average device.Power
	Peak    device.Power
}

// PowerTrace samples the power of one CPU every period ticks. Each sample
// holds until the next one, so the energy is the sum of every sample times
// the ticks it held. The last sample holds up to the current time and adds
// nothing when it is taken on the horizon.
//
// A sample is read at the end of its tick and sees the CPU state left by
// every event of that tick.
type PowerTrace struct {
	logger *slog.Logger
	engine *sim.Engine
	cpu    *device.CPU
	period sim.Tick
	tick   time.Duration

	csv    *csv.Writer
	enc    *csvutil.Encoder
	closer io.Closer

	keep    bool
	samples []Sample

	count  uint64
	start  sim.Tick
	last   device.Power
	lastAt sim.Tick
	peak   device.Power
	energy float64 // µJ up to lastAt
}

// NewPowerTrace creates a sampler of cpu; sampling starts with Start
func NewPowerTrace(engine *sim.Engine, cpu *device.CPU, period sim.Tick, applyOpts ...OptionFn) (*PowerTrace, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid power sampling period %d: must be positive", period)
	}

	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	p := &PowerTrace{
		logger: opts.logger.With("service", "power-trace", "cpu", cpu.Name()),
		engine: engine,
		cpu:    cpu,
		period: period,
		tick:   opts.tickDuration,
		keep:   opts.keepSamples,
	}
	if opts.writer != nil {
		p.csv = csv.NewWriter(opts.writer)
		p.enc = csvutil.NewEncoder(p.csv)
		if c, ok := opts.writer.(io.Closer); ok {
			p.closer = c
		}
	}
	return p, nil
}

// Start writes the CSV header and schedules the first sample at the current instant
func (p *PowerTrace) Start() error {
	if p.enc != nil {
		if err := p.enc.EncodeHeader(Sample{}); err != nil {
			return fmt.Errorf("power trace %s: %w", p.cpu.Name(), err)
		}
	}
	p.start = p.engine.Now()
	p.lastAt = p.start
	return p.engine.After(0, p.due)
}

func (p *PowerTrace) due() error {
	return p.engine.AtTickEnd(p.sample)
}

func (p *PowerTrace) sample() error {
	power, err := p.cpu.CurrentPower()
	if err != nil {
		return fmt.Errorf("power trace %s: %w", p.cpu.Name(), err)
	}

	s := Sample{
		Time:      p.engine.Now(),
		CPU:       p.cpu.Name(),
		Power:     power.Watts(),
		Workload:  p.cpu.Workload(),
		Frequency: p.cpu.Frequency(),
		Voltage:   p.cpu.Voltage(),
	}

	p.energy = p.integrate(s.Time)
	p.last = power
	p.lastAt = s.Time
	p.count++
	p.peak = max(p.peak, power)

	if p.keep {
		p.samples = append(p.samples, s)
	}
	if p.enc != nil {
		if err := p.enc.Encode(s); err != nil {
			return fmt.Errorf("power trace %s: %w", p.cpu.Name(), err)
		}
	}

	return p.engine.After(p.period, p.due)
}

// integrate returns the energy in µJ drawn up to at
func (p *PowerTrace) integrate(at sim.Tick) float64 {
	if p.count == 0 || at <= p.lastAt {
		return p.energy
	}
	held := time.Duration(at-p.lastAt) * p.tick
	return p.energy + p.last.MicroWatts()*held.Seconds()
}

func (p *PowerTrace) CPU() *device.CPU { return p.cpu }

// Samples returns the samples taken so far; empty unless created WithSamples(true)
func (p *PowerTrace) Samples() []Sample {
	return append([]Sample(nil), p.samples...)
}

// Energy returns the energy drawn from Start to the current time, rounded
// to the microjoule
func (p *PowerTrace) Energy() device.Energy {
	return device.Energy(math.Round(p.integrate(p.engine.Now())))
}

// Stats returns the energy, average and peak power from Start to the
// current time. With no time elapsed the average is the first sample.
func (p *PowerTrace) Stats() PowerStats {
	now := p.engine.Now()
	stats := PowerStats{
		CPU:     p.cpu.Name(),
		Samples: p.count,
		Energy:  p.Energy(),
		Peak:    p.peak,
	}
	switch elapsed := (time.Duration(now-p.start) * p.tick).Seconds(); {
	case p.count == 0:
	case elapsed > 0:
		stats.Average = device.Power(p.integrate(now) / elapsed)
	default:
		stats.Average = p.last
	}
	return stats
}

// Close flushes the CSV rows and closes the writer when it is an io.Closer
func (p *PowerTrace) Close() error {
	if p.csv == nil {
		return nil
	}
	p.csv.Flush()
	err := p.csv.Error()
	if p.closer != nil {
		if cerr := p.closer.Close(); err == nil {
			err = cerr
		}
	}
	p.logger.Debug("power trace closed", "samples", p.count, "energy", p.Energy())
	return err
}
