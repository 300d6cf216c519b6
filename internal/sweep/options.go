// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package sweep

import (
	"io"
	"log/slog"
	"os"
	"runtime"
)

type Opts struct {
	logger  *slog.Logger
	out     io.WriteCloser
	workers int
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:  slog.Default(),
		out:     os.Stdout,
		workers: runtime.NumCPU(),
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Runner
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithOutput sets the destination of the result CSV
func WithOutput(out io.WriteCloser) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

// WithWorkers sets how many simulations run at once; values below 1 keep the default
func WithWorkers(n int) OptionFn {
	return func(o *Opts) {
		if n > 0 {
			o.workers = n
		}
	}
}
