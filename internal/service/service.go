// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "context"

// Service is the interface that all services must implement
type Service interface {
	// Name returns the name of the service
	Name() string
}

// Initializer is implemented by services with setup work (building the
// simulated platform, opening trace files, registering endpoints)
type Initializer interface {
	Service
	Init() error
}

// Runner is implemented by services that block until they are done or ctx is
// canceled. The first Runner to return ends the whole group.
type Runner interface {
	Service
	Run(ctx context.Context) error
}

// Shutdowner is implemented by services holding resources that must be
// released (flushing traces, closing listeners)
type Shutdowner interface {
	Service
	Shutdown() error
}
