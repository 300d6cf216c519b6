// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package simulation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/device"
	"github.com/sustainable-computing-io/rtsim/internal/kernel"
	"github.com/sustainable-computing-io/rtsim/internal/scheduler"
	"github.com/sustainable-computing-io/rtsim/internal/sim"
	"github.com/sustainable-computing-io/rtsim/internal/task"
	"github.com/sustainable-computing-io/rtsim/internal/trace"
	"k8s.io/utils/ptr"
)

const (
	TextTraceFile = "trace.txt"
	JSONTraceFile = "trace.json"
)

// PowerTraceFile returns the name of the power trace file of cpu
func PowerTraceFile(cpu string) string {
	return fmt.Sprintf("power_%s.csv", cpu)
}

// Platform is a simulated board: one engine, a kernel per CPU and the tasks
// and tracers attached to them. A Platform runs once.
type Platform struct {
	logger *slog.Logger
	cfg    *config.Config

	engine  *sim.Engine
	cpus    []*device.CPU
	cluster map[string]string // cpu name -> cluster name
	kernels map[string]*kernel.Kernel
	tasks   []*task.Periodic
	power   []*trace.PowerTrace

	// event tracers are closed with the platform
	closers []io.Closer

	ran    bool
	closed bool
}

// Build creates the platform described by cfg. cfg is expected to be valid;
// any remaining inconsistency is returned as an error and every file opened
// so far is closed.
func Build(cfg *config.Config, logger *slog.Logger) (_ *Platform, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Platform{
		logger:  logger.With("service", "platform"),
		cfg:     cfg,
		engine:  sim.NewEngine(sim.WithLogger(logger)),
		cluster: map[string]string{},
		kernels: map[string]*kernel.Kernel{},
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, p.Close())
		}
	}()

	if err := p.buildCPUs(); err != nil {
		return nil, err
	}
	if err := p.buildKernels(logger); err != nil {
		return nil, err
	}
	listeners, err := p.openEventTraces()
	if err != nil {
		return nil, err
	}
	if err := p.buildTasks(listeners); err != nil {
		return nil, err
	}
	if err := p.startPowerTraces(logger); err != nil {
		return nil, err
	}
	if err := p.scheduleDVFS(); err != nil {
		return nil, err
	}

	p.logger.Info("platform built",
		"cpus", len(p.cpus), "tasks", len(p.tasks),
		"scheduler", cfg.Simulation.Scheduler, "horizon", cfg.Simulation.Horizon)
	return p, nil
}

func (p *Platform) buildCPUs() error {
	var fmax uint64

	for _, cl := range p.cfg.Platform.Clusters {
		workloads := maps.Clone(cl.Workloads)
		if workloads == nil {
			workloads = map[string]config.Coefficients{}
		}
		if cl.WorkloadsFile != "" {
			fromFile, err := loadWorkloads(cl.WorkloadsFile)
			if err != nil {
				return fmt.Errorf("cluster %s: %w", cl.Name, err)
			}
			maps.Copy(workloads, fromFile)
		}

		opps := make([]device.OperatingPoint, len(cl.OperatingPoints))
		for i, o := range cl.OperatingPoints {
			opps[i] = device.OperatingPoint{Voltage: o.Voltage, Frequency: o.Frequency}
		}

		for _, name := range cl.CPUNames() {
			// every CPU owns its model
			model, err := newModel(cl.Model, workloads)
			if err != nil {
				return fmt.Errorf("cluster %s: %w", cl.Name, err)
			}
			cpu, err := device.NewCPU(name, opps, model)
			if err != nil {
				return err
			}
			if err := cpu.SetOPP(cl.OPP); err != nil {
				return err
			}
			fmax = max(fmax, cpu.MaxFrequency())
			p.cpus = append(p.cpus, cpu)
			p.cluster[name] = cl.Name
		}
	}

	// normalization needs every CPU to exist
	if p.cfg.Platform.FrequencyMax > 0 {
		fmax = p.cfg.Platform.FrequencyMax
	}
	for _, cpu := range p.cpus {
		cpu.Model().SetFrequencyMax(fmax)
	}
	p.logger.Debug("cpus created", "count", len(p.cpus), "frequencyMax", fmax)
	return nil
}

func newModel(kind string, workloads map[string]config.Coefficients) (device.PowerModel, error) {
	model, err := device.NewPowerModel(kind)
	if err != nil {
		return nil, err
	}
	for _, label := range slices.Sorted(maps.Keys(workloads)) {
		coeff := workloads[label]
		if err := model.SetWorkloadParams(label, powerParams(coeff.Power), computationParams(coeff.Computation)); err != nil {
			return nil, err
		}
	}
	return model, nil
}

func powerParams(v []float64) device.PowerParams {
	var out device.PowerParams
	copy(out[:], v)
	return out
}

func computationParams(v []float64) device.ComputationParams {
	var out device.ComputationParams
	copy(out[:], v)
	return out
}

func (p *Platform) buildKernels(logger *slog.Logger) error {
	for _, cpu := range p.cpus {
		sched, err := scheduler.New(p.cfg.Simulation.Scheduler)
		if err != nil {
			return err
		}
		p.kernels[cpu.Name()] = kernel.New(p.engine, sched, cpu, kernel.WithLogger(logger))
	}
	return nil
}

func (p *Platform) openEventTraces() ([]task.Listener, error) {
	tc := p.cfg.Trace
	if tc.OutputDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(tc.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	var listeners []task.Listener
	if ptr.Deref(tc.Text, false) {
		f, err := os.Create(filepath.Join(tc.OutputDir, TextTraceFile))
		if err != nil {
			return nil, err
		}
		t := trace.NewTextTrace(f, tc.Levels)
		p.closers = append(p.closers, t)
		listeners = append(listeners, t)
	}
	if ptr.Deref(tc.JSON, false) {
		f, err := os.Create(filepath.Join(tc.OutputDir, JSONTraceFile))
		if err != nil {
			return nil, err
		}
		t := trace.NewJSONTrace(f, tc.Levels)
		p.closers = append(p.closers, t)
		listeners = append(listeners, t)
	}
	return listeners, nil
}

func (p *Platform) buildTasks(listeners []task.Listener) error {
	for _, tc := range p.cfg.Tasks {
		k, ok := p.kernels[tc.CPU]
		if !ok {
			return fmt.Errorf("task %s: unknown cpu %q", tc.Name, tc.CPU)
		}

		t, err := task.NewPeriodic(tc.Name, sim.Tick(tc.Period), sim.Tick(tc.Deadline), sim.Tick(tc.Phase))
		if err != nil {
			return err
		}
		if err := t.InsertCode(tc.Code); err != nil {
			return fmt.Errorf("task %s: %w", tc.Name, err)
		}
		if w := p.cfg.Simulation.Workload; w != "" {
			t.OverrideWorkload(w)
		}
		for _, l := range listeners {
			t.AddListener(l)
		}

		if err := k.AddTask(t, tc.Migration); err != nil {
			return err
		}
		p.tasks = append(p.tasks, t)
	}
	return nil
}

// startPowerTraces samples every CPU. Sampling runs even when power traces
// are disabled; only the CSV files are skipped.
func (p *Platform) startPowerTraces(logger *slog.Logger) error {
	pc := p.cfg.Trace.Power
	period := sim.Tick(max(pc.Period, 1))
	writeCSV := ptr.Deref(pc.Enabled, false) && p.cfg.Trace.OutputDir != ""
	if writeCSV {
		if err := os.MkdirAll(p.cfg.Trace.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create trace directory: %w", err)
		}
	}

	for _, cpu := range p.cpus {
		opts := []trace.OptionFn{
			trace.WithLogger(logger),
			trace.WithTickDuration(p.cfg.Simulation.TickDuration),
		}
		if writeCSV {
			f, err := os.Create(filepath.Join(p.cfg.Trace.OutputDir, PowerTraceFile(cpu.Name())))
			if err != nil {
				return err
			}
			opts = append(opts, trace.WithWriter(f))
		}

		pt, err := trace.NewPowerTrace(p.engine, cpu, period, opts...)
		if err != nil {
			return err
		}
		p.power = append(p.power, pt)
		if err := pt.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Platform) scheduleDVFS() error {
	for _, step := range p.cfg.DVFS {
		k, ok := p.kernels[step.CPU]
		if !ok {
			return fmt.Errorf("dvfs step at %d: unknown cpu %q", step.At, step.CPU)
		}
		opp := step.OPP
		if err := p.engine.Schedule(sim.Tick(step.At), func() error { return k.SetOPP(opp) }); err != nil {
			return fmt.Errorf("dvfs step at %d on %s: %w", step.At, step.CPU, err)
		}
	}
	return nil
}

// Engine returns the event engine of the platform
func (p *Platform) Engine() *sim.Engine {
	return p.engine
}

// Kernel returns the kernel of the named CPU, nil if there is none
func (p *Platform) Kernel(cpu string) *kernel.Kernel {
	return p.kernels[cpu]
}

// CPUs returns the CPUs in cluster order
func (p *Platform) CPUs() []*device.CPU {
	return slices.Clone(p.cpus)
}

// Run simulates up to the configured horizon, closes the tracers and returns
// the resulting snapshot. Timestamp and Elapsed are left to the caller.
func (p *Platform) Run() (*Snapshot, error) {
	if p.ran {
		return nil, errors.New("platform already ran")
	}
	p.ran = true

	if err := p.engine.Run(sim.Tick(p.cfg.Simulation.Horizon)); err != nil {
		return nil, errors.Join(fmt.Errorf("simulation failed: %w", err), p.Close())
	}
	snapshot := p.snapshot()
	if err := p.Close(); err != nil {
		return nil, fmt.Errorf("failed to close traces: %w", err)
	}

	p.logger.Info("simulation completed",
		"now", p.engine.Now(), "events", p.engine.Fired(),
		"energy", snapshot.TotalEnergy(), "deadlineMisses", snapshot.DeadlineMisses())
	return snapshot, nil
}

func (p *Platform) snapshot() *Snapshot {
	s := &Snapshot{
		Horizon:      sim.Tick(p.cfg.Simulation.Horizon),
		TickDuration: p.cfg.Simulation.TickDuration,
		Scheduler:    p.cfg.Simulation.Scheduler,
		Workload:     p.cfg.Simulation.Workload,
		Events:       p.engine.Fired(),
		CPUs:         make([]CPU, 0, len(p.cpus)),
		Tasks:        make([]Task, 0, len(p.tasks)),
	}
	if s.Scheduler == "" {
		s.Scheduler = scheduler.EDF
	}

	for i, cpu := range p.cpus {
		stats := p.power[i].Stats()
		s.CPUs = append(s.CPUs, CPU{
			Name:         cpu.Name(),
			Cluster:      p.cluster[cpu.Name()],
			OPP:          cpu.OPP(),
			Frequency:    cpu.Frequency(),
			Voltage:      cpu.Voltage(),
			Workload:     cpu.Workload(),
			Samples:      stats.Samples,
			Energy:       stats.Energy,
			AveragePower: stats.Average,
			PeakPower:    stats.Peak,
		})
	}

	for i, t := range p.tasks {
		st := t.Stats()
		s.Tasks = append(s.Tasks, Task{
			Name:             t.Name(),
			CPU:              p.cfg.Tasks[i].CPU,
			Period:           t.Period(),
			Deadline:         t.Deadline(),
			Activations:      st.Activations,
			Completions:      st.Completions,
			DeadlineMisses:   st.DeadlineMisses,
			Aborts:           st.Aborts,
			Preemptions:      st.Preemptions,
			MaxLateness:      st.MaxLateness,
			MaxResponseTime:  st.MaxResponseTime,
			MeanResponseTime: st.MeanResponseTime(),
		})
	}
	return s
}

// Close flushes and closes every trace file. It is safe to call more than once.
func (p *Platform) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	for _, pt := range p.power {
		errs = append(errs, pt.Close())
	}
	return errors.Join(errs...)
}
