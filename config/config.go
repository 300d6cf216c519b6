// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/rtsim/internal/device"
	"github.com/sustainable-computing-io/rtsim/internal/scheduler"
	"github.com/sustainable-computing-io/rtsim/internal/task"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	Simulation struct {
		Horizon      int64         `yaml:"horizon"`      // run length in ticks
		TickDuration time.Duration `yaml:"tickDuration"` // wall time of one tick, used for energy
		Scheduler    string        `yaml:"scheduler"`

		// Workload, when set, replaces the workload label of every task instruction
		Workload string `yaml:"workload"`
	}

	OperatingPoint struct {
		Voltage   float64 `yaml:"voltage"`
		Frequency uint64  `yaml:"frequency"` // MHz
	}

	// Coefficients of one workload; missing trailing values are zero
	Coefficients struct {
		Power       []float64 `yaml:"power"`
		Computation []float64 `yaml:"computation"`
	}

	Cluster struct {
		Name            string                  `yaml:"name"`
		CPUs            int                     `yaml:"cpus"`
		Model           string                  `yaml:"model"`
		OPP             int                     `yaml:"opp"` // initial operating point of every CPU
		OperatingPoints []OperatingPoint        `yaml:"operatingPoints"`
		Workloads       map[string]Coefficients `yaml:"workloads"`

		// WorkloadsFile is a CSV of workload,p0..p3,c0..c3 rows; rows
		// override inline workloads with the same label
		WorkloadsFile string `yaml:"workloadsFile"`
	}

	Platform struct {
		// FrequencyMax normalizes computation rates; 0 uses the highest
		// frequency of all clusters
		FrequencyMax uint64    `yaml:"frequencyMax"`
		Clusters     []Cluster `yaml:"clusters"`
	}

	Task struct {
		Name      string `yaml:"name"`
		CPU       string `yaml:"cpu"`
		Period    int64  `yaml:"period"`
		Deadline  int64  `yaml:"deadline"` // 0 means equal to period
		Phase     int64  `yaml:"phase"`
		Code      string `yaml:"code"`
		Migration string `yaml:"migration"`
	}

	// DVFSStep changes the operating point of a CPU during the run
	DVFSStep struct {
		At  int64  `yaml:"at"`
		CPU string `yaml:"cpu"`
		OPP int    `yaml:"opp"`
	}

	PowerTrace struct {
		Enabled *bool `yaml:"enabled"`
		Period  int64 `yaml:"period"` // ticks between samples
	}

	Trace struct {
		Levels    TraceLevel `yaml:"levels"`
		OutputDir string     `yaml:"outputDir"` // empty disables trace files
		Text      *bool      `yaml:"text"`
		JSON      *bool      `yaml:"json"`
		Power     PowerTrace `yaml:"power"`
	}

	// Exporter configuration
	StdoutExporter struct {
		Enabled *bool `yaml:"enabled"`
	}

	PrometheusExporter struct {
		Enabled         *bool    `yaml:"enabled"`
		DebugCollectors []string `yaml:"debugCollectors"`
		Textfile        string   `yaml:"textfile"`
	}

	Exporter struct {
		Stdout     StdoutExporter     `yaml:"stdout"`
		Prometheus PrometheusExporter `yaml:"prometheus"`
	}

	Web struct {
		Enabled         *bool    `yaml:"enabled"`
		Config          string   `yaml:"configFile"`
		ListenAddresses []string `yaml:"listenAddresses"`
	}

	// Sweep runs one simulation per (LITTLE, big) operating point pair
	Sweep struct {
		Enabled *bool  `yaml:"enabled"`
		Output  string `yaml:"output"`  // CSV file; empty writes to stdout
		Workers int    `yaml:"workers"` // 0 uses one worker per CPU
		Little  []int  `yaml:"little,omitempty"` // empty sweeps every LITTLE OPP
		Big     []int  `yaml:"big,omitempty"`    // empty sweeps every big OPP
	}

	Config struct {
		Log        Log        `yaml:"log"`
		Simulation Simulation `yaml:"simulation"`
		Platform   Platform   `yaml:"platform"`
		Tasks      []Task     `yaml:"tasks"`
		DVFS       []DVFSStep `yaml:"dvfs,omitempty"`
		Trace      Trace      `yaml:"trace"`
		Exporter   Exporter   `yaml:"exporter"`
		Web        Web        `yaml:"web"`
		Sweep      Sweep      `yaml:"sweep"`
	}
)

const (
	// cluster names addressed by the positional arguments
	LittleCluster = "LITTLE"
	BigCluster    = "big"

	DefaultWorkload = "bzip2"
	DefaultPort     = 28283
)

const (
	// Flags
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	SimHorizonFlag     = "sim.horizon"
	SimSchedulerFlag   = "sim.scheduler"
	SimPowerPeriodFlag = "sim.power-period"

	TraceDirFlag   = "trace.dir"
	TraceLevelFlag = "trace.level"

	WebEnabledFlag       = "web.enable"
	WebConfigFlag        = "web.config-file"
	WebListenAddressFlag = "web.listen-address"

	// Exporters
	ExporterStdoutEnabledFlag      = "exporter.stdout"
	ExporterPrometheusEnabledFlag  = "exporter.prometheus"
	ExporterPrometheusTextfileFlag = "exporter.prometheus.textfile"
	// NOTE: not a flag
	ExporterPrometheusDebugCollectors = "exporter.prometheus.debug-collectors"

	SweepFlag        = "sweep"
	SweepOutputFlag  = "sweep.output"
	SweepWorkersFlag = "sweep.workers"

	// positional arguments
	LittleOPPArg = "little-opp"
	BigOPPArg    = "big-opp"
	WorkloadArg  = "workload"
)

// DefaultConfig returns a Config with default values: an Odroid-XU3 board
// with one bzip2 task on the first CPU of each cluster
func DefaultConfig() *Config {
	cfg := &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Simulation: Simulation{
			Horizon:      50000,
			TickDuration: time.Millisecond,
			Scheduler:    scheduler.EDF,
		},
		Platform: Platform{
			Clusters: []Cluster{odroidLittle(), odroidBig()},
		},
		Tasks: []Task{{
			Name:     "Task_LITTLE_0",
			CPU:      "LITTLE_0",
			Period:   500,
			Deadline: 100,
			Code:     "fixed(100,bzip2);",
		}, {
			Name:     "Task_big_0",
			CPU:      "big_0",
			Period:   500,
			Deadline: 100,
			Code:     "fixed(100,bzip2);",
		}},
		Trace: Trace{
			Levels: TraceLevelAll,
			Text:   ptr.To(true),
			JSON:   ptr.To(true),
			Power: PowerTrace{
				Enabled: ptr.To(true),
				Period:  1,
			},
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{
				Enabled: ptr.To(true),
			},
			Prometheus: PrometheusExporter{
				Enabled:         ptr.To(false),
				DebugCollectors: []string{"go"},
			},
		},
		Web: Web{
			Enabled:         ptr.To(false),
			ListenAddresses: []string{fmt.Sprintf(":%d", DefaultPort)},
		},
		Sweep: Sweep{
			Enabled: ptr.To(false),
		},
	}
	return cfg
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	var errRet error
	defer func() {
		err = file.Close()
		if err != nil && errRet == nil {
			errRet = err
		}
	}()

	cfg, errRet := Load(file)

	return cfg, errRet
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags and the positional arguments
// [little-opp] [big-opp] [workload] with kingpin app and returns
// ConfigUpdaterFn that updates the config from parsed values, as command line
// arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags and args that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if element.Value == nil {
				continue
			}
			switch clause := element.Clause.(type) {
			case *kingpin.FlagClause:
				flagsSet[clause.Model().Name] = true
			case *kingpin.ArgClause:
				flagsSet[clause.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")

	// simulation
	horizon := app.Flag(SimHorizonFlag, "Simulated time in ticks").Default("50000").Int64()
	sched := app.Flag(SimSchedulerFlag, "Scheduling policy of every CPU").Default(scheduler.EDF).Enum(scheduler.Kinds()...)
	powerPeriod := app.Flag(SimPowerPeriodFlag, "Ticks between two power samples").Default("1").Int64()

	// tracing
	traceDir := app.Flag(TraceDirFlag, "Directory for trace files; empty disables them").Default("").String()
	traceLevel := TraceLevelAll
	app.Flag(TraceLevelFlag, "Task events to trace ("+strings.Join(ValidTraceLevels(), ",")+")").
		SetValue(NewTraceLevelValue(&traceLevel))

	// exporters
	stdoutExporterEnabled := app.Flag(ExporterStdoutEnabledFlag, "Enable stdout exporter").Default("true").Bool()
	prometheusExporterEnabled := app.Flag(ExporterPrometheusEnabledFlag, "Enable Prometheus exporter").Default("false").Bool()
	prometheusTextfile := app.Flag(ExporterPrometheusTextfileFlag, "Write metrics to this file in the text exposition format").Default("").String()

	webEnabled := app.Flag(WebEnabledFlag, "Serve metrics and the simulation snapshot over HTTP after the run").Default("false").Bool()
	webConfig := app.Flag(WebConfigFlag, "Web config file path").Default("").String()
	webListenAddresses := app.Flag(WebListenAddressFlag, "Web server listen addresses").Default(fmt.Sprintf(":%d", DefaultPort)).Strings()

	// sweep
	sweepEnabled := app.Flag(SweepFlag, "Run every LITTLE/big operating point pair instead of a single simulation").Default("false").Bool()
	sweepOutput := app.Flag(SweepOutputFlag, "CSV file for sweep results; empty writes to stdout").Default("").String()
	sweepWorkers := app.Flag(SweepWorkersFlag, "Simulations run in parallel during a sweep; 0 for one per CPU").Default("0").Int()

	littleOPP := app.Arg(LittleOPPArg, "Operating point index of the LITTLE cluster").Default("0").Int()
	bigOPP := app.Arg(BigOPPArg, "Operating point index of the big cluster").Default("0").Int()
	workload := app.Arg(WorkloadArg, "Workload executed by every task").Default(DefaultWorkload).String()

	return func(cfg *Config) error {
		// Logging settings
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}

		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[SimHorizonFlag] {
			cfg.Simulation.Horizon = *horizon
		}
		if flagsSet[SimSchedulerFlag] {
			cfg.Simulation.Scheduler = *sched
		}
		if flagsSet[SimPowerPeriodFlag] {
			cfg.Trace.Power.Period = *powerPeriod
		}

		if flagsSet[TraceDirFlag] {
			cfg.Trace.OutputDir = *traceDir
		}
		if flagsSet[TraceLevelFlag] {
			cfg.Trace.Levels = traceLevel
		}

		if flagsSet[ExporterStdoutEnabledFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutExporterEnabled
		}

		if flagsSet[ExporterPrometheusEnabledFlag] {
			cfg.Exporter.Prometheus.Enabled = prometheusExporterEnabled
		}

		if flagsSet[ExporterPrometheusTextfileFlag] {
			cfg.Exporter.Prometheus.Textfile = *prometheusTextfile
		}

		if flagsSet[WebEnabledFlag] {
			cfg.Web.Enabled = webEnabled
		}

		if flagsSet[WebConfigFlag] {
			cfg.Web.Config = *webConfig
		}

		if flagsSet[WebListenAddressFlag] {
			cfg.Web.ListenAddresses = *webListenAddresses
		}

		if flagsSet[SweepFlag] {
			cfg.Sweep.Enabled = sweepEnabled
		}
		if flagsSet[SweepOutputFlag] {
			cfg.Sweep.Output = *sweepOutput
		}
		if flagsSet[SweepWorkersFlag] {
			cfg.Sweep.Workers = *sweepWorkers
		}

		if flagsSet[LittleOPPArg] {
			if c := cfg.Cluster(LittleCluster); c != nil {
				c.OPP = *littleOPP
			}
		}
		if flagsSet[BigOPPArg] {
			if c := cfg.Cluster(BigCluster); c != nil {
				c.OPP = *bigOPP
			}
		}
		if flagsSet[WorkloadArg] {
			cfg.Simulation.Workload = *workload
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

// Cluster returns the cluster with the given name, compared case-insensitively
func (c *Config) Cluster(name string) *Cluster {
	for i := range c.Platform.Clusters {
		if strings.EqualFold(c.Platform.Clusters[i].Name, name) {
			return &c.Platform.Clusters[i]
		}
	}
	return nil
}

// CPUNames returns the names of the CPUs of the cluster: <cluster>_<index>
func (cl Cluster) CPUNames() []string {
	names := make([]string, 0, max(cl.CPUs, 0))
	for i := range cl.CPUs {
		names = append(names, fmt.Sprintf("%s_%d", cl.Name, i))
	}
	return names
}

// clusterOf returns the cluster owning the named CPU
func (c *Config) clusterOf(cpu string) *Cluster {
	for i := range c.Platform.Clusters {
		if slices.Contains(c.Platform.Clusters[i].CPUNames(), cpu) {
			return &c.Platform.Clusters[i]
		}
	}
	return nil
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Simulation.Scheduler = strings.ToLower(strings.TrimSpace(c.Simulation.Scheduler))
	c.Simulation.Workload = strings.TrimSpace(c.Simulation.Workload)

	for i := range c.Platform.Clusters {
		cl := &c.Platform.Clusters[i]
		cl.Name = strings.TrimSpace(cl.Name)
		cl.Model = strings.ToLower(strings.TrimSpace(cl.Model))
		cl.WorkloadsFile = strings.TrimSpace(cl.WorkloadsFile)
	}
	for i := range c.Tasks {
		t := &c.Tasks[i]
		t.Name = strings.TrimSpace(t.Name)
		t.CPU = strings.TrimSpace(t.CPU)
		t.Code = strings.TrimSpace(t.Code)
		t.Migration = strings.TrimSpace(t.Migration)
	}
	for i := range c.DVFS {
		c.DVFS[i].CPU = strings.TrimSpace(c.DVFS[i].CPU)
	}

	c.Trace.OutputDir = strings.TrimSpace(c.Trace.OutputDir)
	c.Web.Config = strings.TrimSpace(c.Web.Config)
	for i := range c.Web.ListenAddresses {
		c.Web.ListenAddresses[i] = strings.TrimSpace(c.Web.ListenAddresses[i])
	}

	for i := range c.Exporter.Prometheus.DebugCollectors {
		c.Exporter.Prometheus.DebugCollectors[i] = strings.TrimSpace(c.Exporter.Prometheus.DebugCollectors[i])
	}
	c.Exporter.Prometheus.Textfile = strings.TrimSpace(c.Exporter.Prometheus.Textfile)
	c.Sweep.Output = strings.TrimSpace(c.Sweep.Output)
}

// Validate checks for configuration errors
func (c *Config) Validate() error {
	var errs []string
	{ // log level
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}

		if _, valid := validLogLevels[c.Log.Level]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
	}
	{ // log format
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if _, valid := validFormats[c.Log.Format]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}
	{ // simulation
		if c.Simulation.Horizon <= 0 {
			errs = append(errs, fmt.Sprintf("invalid simulation horizon: %d must be positive", c.Simulation.Horizon))
		}
		if c.Simulation.TickDuration <= 0 {
			errs = append(errs, fmt.Sprintf("invalid tick duration: %s must be positive", c.Simulation.TickDuration))
		}
		if !slices.Contains(scheduler.Kinds(), c.Simulation.Scheduler) {
			errs = append(errs, fmt.Sprintf("invalid scheduler: %s", c.Simulation.Scheduler))
		}
	}

	errs = append(errs, c.validatePlatform()...)
	errs = append(errs, c.validateTasks()...)

	{ // dvfs
		for i, step := range c.DVFS {
			if step.At < 0 {
				errs = append(errs, fmt.Sprintf("invalid dvfs step %d: time %d can't be negative", i, step.At))
			}
			cl := c.clusterOf(step.CPU)
			if cl == nil {
				errs = append(errs, fmt.Sprintf("invalid dvfs step %d: unknown cpu %q", i, step.CPU))
				continue
			}
			if step.OPP < 0 || step.OPP >= len(cl.OperatingPoints) {
				errs = append(errs, fmt.Sprintf("invalid dvfs step %d: operating point %d out of range for cpu %s (%d entries)",
					i, step.OPP, step.CPU, len(cl.OperatingPoints)))
			}
		}
	}
	{ // trace
		if ptr.Deref(c.Trace.Power.Enabled, false) && c.Trace.Power.Period <= 0 {
			errs = append(errs, fmt.Sprintf("invalid power trace period: %d must be positive", c.Trace.Power.Period))
		}
	}
	{ // Web config file
		if c.Web.Config != "" {
			if err := canReadFile(c.Web.Config); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web config file. path: %q: %s", c.Web.Config, err.Error()))
			}
		}
	}
	if ptr.Deref(c.Web.Enabled, false) { // Web listen addresses
		if len(c.Web.ListenAddresses) == 0 {
			errs = append(errs, "at least one web listen address must be specified")
		}
		for _, addr := range c.Web.ListenAddresses {
			if addr == "" {
				errs = append(errs, "web listen address cannot be empty")
				continue
			}
			if err := validateListenAddress(addr); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web listen address %q: %s", addr, err.Error()))
			}
		}
	}
	if ptr.Deref(c.Sweep.Enabled, false) { // sweep
		if c.Sweep.Workers < 0 {
			errs = append(errs, fmt.Sprintf("invalid sweep workers: %d can't be negative", c.Sweep.Workers))
		}
		for _, sweep := range []struct {
			cluster string
			opps    []int
		}{{LittleCluster, c.Sweep.Little}, {BigCluster, c.Sweep.Big}} {
			cl := c.Cluster(sweep.cluster)
			if cl == nil {
				errs = append(errs, fmt.Sprintf("sweep requires a %s cluster", sweep.cluster))
				continue
			}
			for _, opp := range sweep.opps {
				if opp < 0 || opp >= len(cl.OperatingPoints) {
					errs = append(errs, fmt.Sprintf("invalid sweep operating point %d for cluster %s (%d entries)",
						opp, cl.Name, len(cl.OperatingPoints)))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

func (c *Config) validatePlatform() []string {
	var errs []string
	if len(c.Platform.Clusters) == 0 {
		return []string{"at least one cluster must be configured"}
	}

	seen := map[string]bool{}
	for _, cl := range c.Platform.Clusters {
		if cl.Name == "" {
			errs = append(errs, "cluster name cannot be empty")
			continue
		}
		if seen[cl.Name] {
			errs = append(errs, fmt.Sprintf("duplicate cluster: %s", cl.Name))
		}
		seen[cl.Name] = true

		if cl.CPUs <= 0 {
			errs = append(errs, fmt.Sprintf("invalid cpu count for cluster %s: %d must be positive", cl.Name, cl.CPUs))
		}
		if cl.Model != "" && !slices.Contains(device.ModelKinds(), cl.Model) {
			errs = append(errs, fmt.Sprintf("invalid power model for cluster %s: %s", cl.Name, cl.Model))
		}

		if len(cl.OperatingPoints) == 0 {
			errs = append(errs, fmt.Sprintf("cluster %s has no operating points", cl.Name))
		}
		for i, opp := range cl.OperatingPoints {
			if opp.Voltage <= 0 || opp.Frequency == 0 {
				errs = append(errs, fmt.Sprintf("invalid operating point %d of cluster %s: voltage and frequency must be positive", i, cl.Name))
			}
		}
		if cl.OPP < 0 || cl.OPP >= len(cl.OperatingPoints) {
			errs = append(errs, fmt.Sprintf("invalid operating point index %d for cluster %s: table has %d entries",
				cl.OPP, cl.Name, len(cl.OperatingPoints)))
		}

		for label, coeff := range cl.Workloads {
			if len(coeff.Power) == 0 || len(coeff.Power) > 4 {
				errs = append(errs, fmt.Sprintf("workload %s of cluster %s: expected 1 to 4 power coefficients, got %d", label, cl.Name, len(coeff.Power)))
			}
			if len(coeff.Computation) == 0 || len(coeff.Computation) > 4 {
				errs = append(errs, fmt.Sprintf("workload %s of cluster %s: expected 1 to 4 computation coefficients, got %d", label, cl.Name, len(coeff.Computation)))
			}
		}

		// labels may come from the CSV, which is only read when the platform is built
		if cl.WorkloadsFile != "" {
			if err := canReadFile(cl.WorkloadsFile); err != nil {
				errs = append(errs, fmt.Sprintf("invalid workloads file for cluster %s: %q: %s", cl.Name, cl.WorkloadsFile, err.Error()))
			}
			continue
		}
		if _, ok := cl.Workloads[device.IdleWorkload]; !ok {
			errs = append(errs, fmt.Sprintf("cluster %s has no %q workload", cl.Name, device.IdleWorkload))
		}
		if w := c.Simulation.Workload; w != "" {
			if _, ok := cl.Workloads[w]; !ok {
				errs = append(errs, fmt.Sprintf("unknown workload %s for cluster %s", w, cl.Name))
			}
		}
	}
	return errs
}

func (c *Config) validateTasks() []string {
	var errs []string
	seen := map[string]bool{}
	for i, t := range c.Tasks {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("task %d has no name", i))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Sprintf("duplicate task: %s", t.Name))
		}
		seen[t.Name] = true

		if c.clusterOf(t.CPU) == nil {
			errs = append(errs, fmt.Sprintf("task %s: unknown cpu %q", t.Name, t.CPU))
		}
		if t.Period <= 0 {
			errs = append(errs, fmt.Sprintf("task %s: period %d must be positive", t.Name, t.Period))
		}
		if t.Deadline < 0 || t.Deadline > t.Period {
			errs = append(errs, fmt.Sprintf("task %s: deadline %d must be between 0 and the period %d", t.Name, t.Deadline, t.Period))
		}
		if t.Phase < 0 {
			errs = append(errs, fmt.Sprintf("task %s: phase %d can't be negative", t.Name, t.Phase))
		}
		if _, err := task.ParseCode(t.Code); err != nil {
			errs = append(errs, fmt.Sprintf("task %s: %s", t.Name, err.Error()))
		}
	}
	return errs
}

func canReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()
	buf := make([]byte, 8)
	_, err = f.Read(buf)
	if err != nil {
		return err
	}

	return nil
}

func validateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	// host can be empty for listening on all interfaces
	return validatePort(port)
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric, got %s", port)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", portNum)
	}
	return nil
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	out := *c
	out.Platform.Clusters = make([]Cluster, len(c.Platform.Clusters))
	for i, cl := range c.Platform.Clusters {
		cl.OperatingPoints = slices.Clone(cl.OperatingPoints)
		workloads := make(map[string]Coefficients, len(cl.Workloads))
		for label, coeff := range cl.Workloads {
			workloads[label] = Coefficients{
				Power:       slices.Clone(coeff.Power),
				Computation: slices.Clone(coeff.Computation),
			}
		}
		cl.Workloads = workloads
		out.Platform.Clusters[i] = cl
	}
	out.Tasks = slices.Clone(c.Tasks)
	out.DVFS = slices.Clone(c.DVFS)
	out.Exporter.Prometheus.DebugCollectors = slices.Clone(c.Exporter.Prometheus.DebugCollectors)
	out.Web.ListenAddresses = slices.Clone(c.Web.ListenAddresses)
	out.Sweep.Little = slices.Clone(c.Sweep.Little)
	out.Sweep.Big = slices.Clone(c.Sweep.Big)

	out.Trace.Text = clonePtr(c.Trace.Text)
	out.Trace.JSON = clonePtr(c.Trace.JSON)
	out.Trace.Power.Enabled = clonePtr(c.Trace.Power.Enabled)
	out.Exporter.Stdout.Enabled = clonePtr(c.Exporter.Stdout.Enabled)
	out.Exporter.Prometheus.Enabled = clonePtr(c.Exporter.Prometheus.Enabled)
	out.Web.Enabled = clonePtr(c.Web.Enabled)
	out.Sweep.Enabled = clonePtr(c.Sweep.Enabled)
	return &out
}

func clonePtr(b *bool) *bool {
	if b == nil {
		return nil
	}
	return ptr.To(*b)
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE:  this code path should not happen but if it does (i.e if yaml marshal) fails
	// for some reason, manually build the string
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{SimHorizonFlag, fmt.Sprintf("%d", c.Simulation.Horizon)},
		{SimSchedulerFlag, c.Simulation.Scheduler},
		{SimPowerPeriodFlag, fmt.Sprintf("%d", c.Trace.Power.Period)},
		{TraceDirFlag, c.Trace.OutputDir},
		{TraceLevelFlag, c.Trace.Levels.String()},
		{ExporterStdoutEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Stdout.Enabled, false))},
		{ExporterPrometheusEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Prometheus.Enabled, false))},
		{ExporterPrometheusDebugCollectors, strings.Join(c.Exporter.Prometheus.DebugCollectors, ", ")},
		{ExporterPrometheusTextfileFlag, c.Exporter.Prometheus.Textfile},
		{WebEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Web.Enabled, false))},
		{WebListenAddressFlag, strings.Join(c.Web.ListenAddresses, ", ")},
		{WorkloadArg, c.Simulation.Workload},
	}
	sb := strings.Builder{}

	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}

	return sb.String()
}
