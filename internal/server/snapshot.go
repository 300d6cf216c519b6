// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sustainable-computing-io/rtsim/internal/service"
	"github.com/sustainable-computing-io/rtsim/internal/simulation"
)

const SnapshotEndpoint = "/api/v1/snapshot"

// SnapshotService serves the simulation snapshot as JSON
type SnapshotService struct {
	logger    *slog.Logger
	apiServer APIService
	provider  simulation.SnapshotProvider
}

var _ service.Initializer = (*SnapshotService)(nil)

func NewSnapshotService(apiServer APIService, provider simulation.SnapshotProvider, logger *slog.Logger) *SnapshotService {
	return &SnapshotService{
		logger:    logger.With("service", "snapshot-api"),
		apiServer: apiServer,
		provider:  provider,
	}
}

func (s *SnapshotService) Name() string {
	return "snapshot-api"
}

func (s *SnapshotService) Init() error {
	if err := s.apiServer.Register(SnapshotEndpoint, "Snapshot", "Simulation results as JSON", s.handler()); err != nil {
		return fmt.Errorf("failed to register snapshot endpoint: %w", err)
	}
	return nil
}

// handler responds with the snapshot. A request made before the simulation
// ended waits for it.
func (s *SnapshotService) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		snapshot, err := s.provider.Snapshot()
		if err != nil {
			s.logger.Error("failed to get snapshot", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot); err != nil {
			s.logger.Error("failed to write snapshot", "error", err)
		}
	})
}
