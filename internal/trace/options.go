// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"io"
	"log/slog"
	"time"
)

type Opts struct {
	logger       *slog.Logger
	writer       io.Writer
	tickDuration time.Duration
	keepSamples  bool
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:       slog.Default(),
		tickDuration: time.Millisecond,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the PowerTrace
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithWriter sets the CSV destination; without one no rows are written
func WithWriter(w io.Writer) OptionFn {
	return func(o *Opts) {
		o.writer = w
	}
}

// WithTickDuration sets the wall time of one tick used to integrate energy
func WithTickDuration(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.tickDuration = d
	}
}

// WithSamples keeps every sample in memory, see PowerTrace.Samples
func WithSamples(keep bool) OptionFn {
	return func(o *Opts) {
		o.keepSamples = keep
	}
}
