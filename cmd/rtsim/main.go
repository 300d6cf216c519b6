// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/rtsim/internal/exporter/stdout"
	"github.com/sustainable-computing-io/rtsim/internal/logger"
	"github.com/sustainable-computing-io/rtsim/internal/server"
	"github.com/sustainable-computing-io/rtsim/internal/service"
	"github.com/sustainable-computing-io/rtsim/internal/simulation"
	"github.com/sustainable-computing-io/rtsim/internal/sweep"
	"github.com/sustainable-computing-io/rtsim/internal/version"
	"k8s.io/utils/ptr"
)

func main() {
	// parse args and config and exit with error if there is an error
	cfg, err := parseArgsAndConfig()
	if err != nil {
		os.Exit(1)
	}

	// logs go to stderr; stdout carries the report or the sweep CSV
	logger := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logVersionInfo(logger)
	printConfigInfo(logger, cfg)

	services, err := createServices(logger, cfg)
	if err != nil {
		logger.Error("failed to create services", "error", err)
		os.Exit(1)
	}

	if err := service.Init(logger, services); err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting rtsim")
	if err := service.Run(context.Background(), logger, services); err != nil {
		logger.Error("rtsim terminated with an error", "error", err)
		os.Exit(1)
	}
	logger.Info("Graceful shutdown completed")
}

func logVersionInfo(logger *slog.Logger) {
	v := version.Info()
	logger.Info("rtsim version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func parseArgsAndConfig() (*config.Config, error) {
	const appName = "rtsim"
	app := kingpin.New(appName, "Real-time scheduling and energy simulator for big.LITTLE platforms.")
	app.Version(version.Info().String())

	configFile := app.Flag("config.file", "Path to YAML configuration file").String()
	updateConfig := config.RegisterFlags(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := logger.New("info", "text", os.Stderr)
	cfg := config.DefaultConfig()
	if *configFile != "" {
		logger.Info("Loading configuration file", "path", *configFile)
		loadedCfg, err := config.FromFile(*configFile)
		if err != nil {
			logger.Error("Error loading config file", "error", err.Error())
			return nil, err
		}
		cfg = loadedCfg
		logger.Info("Completed loading of configuration file", "path", *configFile)
	}

	// Apply command line flags (these override config file settings)
	if err := updateConfig(cfg); err != nil {
		logger.Error("Error applying command line flags", "error", err.Error())
		return nil, err
	}

	return cfg, nil
}

func printConfigInfo(logger *slog.Logger, cfg *config.Config) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) || cfg.Log.Format == "json" {
		return
	}

	fmt.Fprintf(os.Stderr, `
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}

func createServices(logger *slog.Logger, cfg *config.Config) ([]service.Service, error) {
	logger.Debug("Creating all services")

	if ptr.Deref(cfg.Sweep.Enabled, false) {
		return createSweepServices(logger, cfg)
	}

	webEnabled := ptr.Deref(cfg.Web.Enabled, false)

	var reporters []simulation.Reporter
	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		reporters = append(reporters, stdout.NewExporter(stdout.WithLogger(logger)))
	}

	var apiServer *server.APIServer
	if webEnabled {
		apiServer = server.NewAPIServer(
			server.WithLogger(logger),
			server.WithListen(cfg.Web.ListenAddresses, cfg.Web.Config),
		)
	}

	sim := simulation.NewSimulator(cfg,
		simulation.WithLogger(logger),
		simulation.WithKeepAlive(webEnabled),
		simulation.WithReporters(reporters...),
	)

	services := []service.Service{}
	if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
		// a typed nil must not reach the exporter as a non-nil interface
		var registry prometheus.APIRegistry
		if apiServer != nil {
			registry = apiServer
		}
		promExporter := prometheus.NewExporter(sim, registry,
			prometheus.WithLogger(logger),
			prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
			prometheus.WithCollectors(prometheus.CreateCollectors(sim, prometheus.WithLogger(logger))),
			prometheus.WithTextfile(cfg.Exporter.Prometheus.Textfile),
		)
		sim.AddReporter(promExporter)
		services = append(services, promExporter)
	}
	if apiServer != nil {
		services = append(services,
			server.NewSnapshotService(apiServer, sim, logger),
			apiServer,
		)
	}
	services = append(services,
		sim,
		service.NewSignalHandler(logger, os.Interrupt, syscall.SIGTERM),
	)
	return services, nil
}

func createSweepServices(logger *slog.Logger, cfg *config.Config) ([]service.Service, error) {
	opts := []sweep.OptionFn{
		sweep.WithLogger(logger),
		sweep.WithWorkers(cfg.Sweep.Workers),
	}
	if cfg.Sweep.Output != "" {
		out, err := os.Create(cfg.Sweep.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to create sweep output: %w", err)
		}
		opts = append(opts, sweep.WithOutput(out))
	}

	return []service.Service{
		sweep.NewRunner(cfg, opts...),
		service.NewSignalHandler(logger, os.Interrupt, syscall.SIGTERM),
	}, nil
}
