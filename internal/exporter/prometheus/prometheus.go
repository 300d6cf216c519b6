// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package prometheus

import (
	"fmt"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	collector "github.com/sustainable-computing-io/rtsim/internal/exporter/prometheus/collector"
	"github.com/sustainable-computing-io/rtsim/internal/service"
	"github.com/sustainable-computing-io/rtsim/internal/simulation"
)

type (
	Initializer = service.Initializer
	Provider    = simulation.SnapshotProvider
)

type APIRegistry interface {
	Register(endpoint, summary, description string, handler http.Handler) error
}

type Opts struct {
	logger          *slog.Logger
	debugCollectors map[string]bool
	collectors      map[string]prom.Collector
	textfile        string
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		debugCollectors: map[string]bool{
			"go": true,
		},
		collectors: map[string]prom.Collector{},
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithDebugCollectors sets the debug collectors
func WithDebugCollectors(c []string) OptionFn {
	return func(o *Opts) {
		// Reset existing collectors
		o.debugCollectors = make(map[string]bool)

		for _, name := range c {
			o.debugCollectors[name] = true
		}
	}
}

func WithCollectors(c map[string]prom.Collector) OptionFn {
	return func(o *Opts) {
		o.collectors = c
	}
}

// WithTextfile makes Report write the simulation metrics to path in the
// node-exporter textfile format
func WithTextfile(path string) OptionFn {
	return func(o *Opts) {
		o.textfile = path
	}
}

// Exporter exports the simulation results as Prometheus metrics, served on
// /metrics and optionally written to a textfile
type Exporter struct {
	logger          *slog.Logger
	provider        Provider
	registry        *prom.Registry
	textRegistry    *prom.Registry
	server          APIRegistry
	debugCollectors map[string]bool
	collectors      map[string]prom.Collector
	textfile        string
}

var (
	_ Initializer         = (*Exporter)(nil)
	_ simulation.Reporter = (*Exporter)(nil)
)

// NewExporter creates a new Exporter. s may be nil when no API server runs;
// metrics are then only available through the textfile.
func NewExporter(p Provider, s APIRegistry, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		provider:        p,
		server:          s,
		logger:          opts.logger.With("service", "prometheus"),
		debugCollectors: opts.debugCollectors,
		collectors:      opts.collectors,
		textfile:        opts.textfile,
		registry:        prom.NewRegistry(),
		textRegistry:    prom.NewRegistry(),
	}
}

func collectorForName(name string) (prom.Collector, error) {
	switch name {
	case "go":
		return collectors.NewGoCollector(), nil
	case "process":
		return collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), nil
	default:
		return nil, fmt.Errorf("unknown collector: %s", name)
	}
}

// CreateCollectors returns the collectors of the simulation metrics
func CreateCollectors(p Provider, applyOpts ...OptionFn) map[string]prom.Collector {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}
	return map[string]prom.Collector{
		"build_info": collector.NewBuildInfoCollector(),
		"simulation": collector.NewSimulationCollector(p, opts.logger),
	}
}

func (e *Exporter) Init() error {
	e.logger.Info("Initializing Prometheus exporter")
	for c := range e.debugCollectors {
		collector, err := collectorForName(c)
		if err != nil {
			e.logger.Error("Error creating collector", "collector", c, "error", err)
			return err
		}
		e.logger.Info("Enabling debug collector", "collector", c)
		e.registry.MustRegister(collector)
	}

	// debug collectors stay out of the textfile; node-exporter has its own
	for name, collector := range e.collectors {
		e.logger.Info("Enabling collector", "collector", name)
		e.registry.MustRegister(collector)
		e.textRegistry.MustRegister(collector)
	}

	if e.server == nil {
		return nil
	}
	return e.server.Register("/metrics", "Metrics", "Prometheus metrics",
		promhttp.HandlerFor(
			e.registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          e.registry,
			},
		))
}

// Report writes the textfile, if one is configured. The metrics are gathered
// from the provider, which holds the same snapshot.
func (e *Exporter) Report(*simulation.Snapshot) error {
	if e.textfile == "" {
		return nil
	}
	if err := prom.WriteToTextfile(e.textfile, e.textRegistry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	e.logger.Info("metrics written", "textfile", e.textfile)
	return nil
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "prometheus"
}
