// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Init initializes, in order, every service implementing Initializer. On the
// first failure the services initialized so far are shut down in reverse
// order and the init error is returned.
func Init(logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	initialized := make([]Service, 0, len(services))
	for _, s := range services {
		srv, ok := s.(Initializer)
		if !ok {
			logger.Debug("skipping service initialization", "service", s.Name(),
				"reason", "service does not implement Initializer")
			continue
		}

		logger.Info("Initializing service", "service", s.Name())
		if err := srv.Init(); err != nil {
			initErr := fmt.Errorf("failed to initialize service %s: %w", s.Name(), err)
			if shutdownErr := Shutdown(logger, initialized); shutdownErr != nil {
				logger.Error("cleanup after failed initialization", "error", shutdownErr)
			}
			return initErr
		}
		initialized = append(initialized, s)
	}
	return nil
}

// Shutdown shuts down, in reverse order, every service implementing
// Shutdowner. All services are attempted; errors are joined.
func Shutdown(logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	var errs error
	for _, s := range slices.Backward(services) {
		srv, ok := s.(Shutdowner)
		if !ok {
			continue
		}
		if err := srv.Shutdown(); err != nil {
			logger.Error("failed to shutdown service", "service", s.Name(), "error", err)
			errs = errors.Join(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Debug("service shutdown successfully", "service", s.Name())
	}
	return errs
}
