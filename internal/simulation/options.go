// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package simulation

import (
	"log/slog"

	"k8s.io/utils/clock"
)

type Opts struct {
	logger    *slog.Logger
	clock     clock.PassiveClock
	keepAlive bool
	reporters []Reporter
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		clock:  clock.RealClock{},
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Simulator and the platform it builds
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the wall clock used to time runs and stamp snapshots
func WithClock(c clock.PassiveClock) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// WithKeepAlive keeps Run blocked after the simulation ends until its
// context is canceled, so that the snapshot stays served over HTTP
func WithKeepAlive(keep bool) OptionFn {
	return func(o *Opts) {
		o.keepAlive = keep
	}
}

// WithReporters sets the reporters handed the snapshot once the run ends
func WithReporters(r ...Reporter) OptionFn {
	return func(o *Opts) {
		o.reporters = append(o.reporters, r...)
	}
}
