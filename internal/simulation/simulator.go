// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/service"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"
)

// SnapshotProvider gives access to the result of the simulation
type SnapshotProvider interface {
	// Snapshot returns the result of the simulation, running it if it has not run yet
	Snapshot() (*Snapshot, error)

	// DataChannel returns a channel that signals when a snapshot is available
	DataChannel() <-chan struct{}
}

// Reporter is handed the snapshot once the simulation ends
type Reporter interface {
	service.Service
	Report(*Snapshot) error
}

// Service defines the interface for the simulation service
type Service interface {
	service.Service
	SnapshotProvider
}

// Simulator runs the configured platform once and keeps the resulting snapshot
type Simulator struct {
	logger    *slog.Logger
	cfg       *config.Config
	clock     clock.PassiveClock
	keepAlive bool
	reporters []Reporter

	// signals when the snapshot is available
	dataCh chan struct{}

	runGroup singleflight.Group
	snapshot atomic.Pointer[Snapshot]
}

var (
	_ Service            = (*Simulator)(nil)
	_ service.Runner     = (*Simulator)(nil)
	_ service.Shutdowner = (*Simulator)(nil)
)

// NewSimulator creates a Simulator for cfg; cfg must not change afterwards
func NewSimulator(cfg *config.Config, applyOpts ...OptionFn) *Simulator {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Simulator{
		logger:    opts.logger.With("service", "simulator"),
		cfg:       cfg,
		clock:     opts.clock,
		keepAlive: opts.keepAlive,
		reporters: opts.reporters,
		dataCh:    make(chan struct{}, 1),
	}
}

func (s *Simulator) Name() string {
	return "simulator"
}

// AddReporter appends r to the reporters handed the snapshot by Run. It must
// be called before Run.
func (s *Simulator) AddReporter(r Reporter) {
	s.reporters = append(s.reporters, r)
}

func (s *Simulator) Init() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.logger.Info("simulator initialized",
		"clusters", len(s.cfg.Platform.Clusters), "tasks", len(s.cfg.Tasks),
		"horizon", s.cfg.Simulation.Horizon, "scheduler", s.cfg.Simulation.Scheduler)
	return nil
}

// Run simulates the platform and hands the snapshot to every reporter. With
// keep alive set it then blocks until ctx is done; otherwise returning ends
// the service group.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("simulator is running...")
	snapshot, err := s.Snapshot()
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range s.reporters {
		if err := r.Report(snapshot.Clone()); err != nil {
			s.logger.Error("reporter failed", "reporter", r.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if s.keepAlive {
		s.logger.Info("simulation done; serving results until terminated")
		<-ctx.Done()
	}
	s.logger.Info("simulator has terminated")
	return nil
}

func (s *Simulator) Shutdown() error {
	s.logger.Info("shutting down simulator")
	return nil
}

func (s *Simulator) DataChannel() <-chan struct{} {
	return s.dataCh
}

func (s *Simulator) Snapshot() (*Snapshot, error) {
	if err := s.ensureSimulated(); err != nil {
		return nil, err
	}

	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return nil, fmt.Errorf("failed to get snapshot")
	}
	return snapshot.Clone(), nil
}

func (s *Simulator) signalNewData() {
	select {
	case s.dataCh <- struct{}{}:
		s.logger.Debug("data channel updated")
	default:
		s.logger.Debug("data channel is full")
	}
}

// ensureSimulated runs the simulation unless a snapshot exists. Concurrent
// callers share a single run.
func (s *Simulator) ensureSimulated() error {
	if s.snapshot.Load() != nil {
		return nil
	}

	_, err, _ := s.runGroup.Do("simulate", func() (any, error) {
		// check again: a run may have completed while waiting
		if s.snapshot.Load() != nil {
			return nil, nil
		}
		return nil, s.simulate()
	})
	return err
}

func (s *Simulator) simulate() error {
	started := s.clock.Now()

	platform, err := Build(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to build platform: %w", err)
	}
	snapshot, err := platform.Run()
	if err != nil {
		return err
	}

	snapshot.Timestamp = s.clock.Now()
	snapshot.Elapsed = s.clock.Since(started)
	s.snapshot.Store(snapshot)
	s.signalNewData()

	s.logger.Info("simulated", "duration", snapshot.Elapsed,
		"cpus", len(snapshot.CPUs), "tasks", len(snapshot.Tasks))
	return nil
}
