// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sustainable-computing-io/rtsim/internal/device"
	"github.com/sustainable-computing-io/rtsim/internal/sim"
	"github.com/sustainable-computing-io/rtsim/internal/task"
)

// ErrMigrationUnsupported is returned when a task is admitted with a migration spec
var ErrMigrationUnsupported = errors.New("task migration is not supported")

// rateEpsilon is subtracted before rounding a projected completion up to the
// next tick so that exact quotients are not pushed one tick late
const rateEpsilon = 1e-9

// Scheduler is the ready queue a Kernel drives
type Scheduler interface {
	Name() string
	AddTask(t *task.Periodic) error
	RemoveTask(t *task.Periodic) error
	Activate(t *task.Periodic) error
	Suspend(t *task.Periodic)
	First() *task.Periodic
	Preempts(candidate, running *task.Periodic) bool
}

// Kernel binds one scheduler to one CPU. It owns admission, dispatch and
// progress accounting of the tasks pinned to that CPU.
type Kernel struct {
	logger *slog.Logger
	engine *sim.Engine
	sched  Scheduler
	cpu    *device.CPU

	tasks   []*task.Periodic
	running *task.Periodic

	// progress of the running task is accounted at rate since lastUpdate
	lastUpdate sim.Tick
	rate       float64

	// epoch invalidates outstanding completion events; it is bumped every
	// time a completion is projected
	epoch uint64

	// a dispatch is queued for the current tick
	dispatchPending bool
}

// New creates a Kernel. The CPU is expected to run the idle workload.
func New(engine *sim.Engine, sched Scheduler, cpu *device.CPU, applyOpts ...OptionFn) *Kernel {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Kernel{
		logger: opts.logger.With("service", "kernel", "cpu", cpu.Name(), "scheduler", sched.Name()),
		engine: engine,
		sched:  sched,
		cpu:    cpu,
	}
}

func (k *Kernel) CPU() *device.CPU     { return k.cpu }
func (k *Kernel) Engine() *sim.Engine  { return k.engine }
func (k *Kernel) Scheduler() Scheduler { return k.sched }

// Running returns the task holding the CPU, nil when idle
func (k *Kernel) Running() *task.Periodic {
	return k.running
}

// Tasks returns the tasks admitted to this kernel
func (k *Kernel) Tasks() []*task.Periodic {
	return append([]*task.Periodic(nil), k.tasks...)
}

// AddTask admits t and schedules its first arrival at now + phase. An empty
// migration spec pins the task to this kernel's CPU; anything else is rejected.
func (k *Kernel) AddTask(t *task.Periodic, migration string) error {
	if migration != "" {
		return fmt.Errorf("task %s: %w: %q", t.Name(), ErrMigrationUnsupported, migration)
	}
	if len(t.Code()) == 0 {
		return fmt.Errorf("task %s: %w", t.Name(), task.ErrNoCode)
	}
	model := k.cpu.Model()
	for _, w := range t.Workloads() {
		if !model.HasWorkload(w) {
			return fmt.Errorf("task %s on cpu %s: %w", t.Name(), k.cpu.Name(), &device.UnknownWorkloadError{Workload: w})
		}
	}

	if err := k.sched.AddTask(t); err != nil {
		return err
	}
	if err := k.engine.After(t.Phase(), func() error { return k.onArrival(t) }); err != nil {
		return err
	}
	k.tasks = append(k.tasks, t)
	k.logger.Debug("task admitted", "task", t.Name(), "period", t.Period(), "deadline", t.Deadline(), "phase", t.Phase())
	return nil
}

// SetOPP changes the operating point of the CPU at the current instant.
// Progress so far is accounted at the old rate and the running job's
// completion is projected again at the new one by the dispatch of that tick.
func (k *Kernel) SetOPP(i int) error {
	if err := k.advance(); err != nil {
		return err
	}
	prev := k.cpu.OPP()
	if err := k.cpu.SetOPP(i); err != nil {
		return err
	}
	k.logger.Debug("operating point changed", "time", k.engine.Now(), "from", prev, "to", i,
		"frequency", k.cpu.Frequency())
	return k.requestDispatch()
}

func (k *Kernel) onArrival(t *task.Periodic) error {
	if err := k.advance(); err != nil {
		return err
	}
	now := k.engine.Now()

	// overrun: the previous job is dropped when the next one is released
	if prev := t.Job(); prev != nil && prev.Active() {
		k.sched.Suspend(t)
		if k.running == t {
			k.running = nil
		}
		k.logger.Debug("job aborted", "task", t.Name(), "job", prev.Number, "time", now)
		if err := t.Abort(now, k.cpu.Name()); err != nil {
			return err
		}
	}

	job, err := t.Arrive(now, k.cpu.Name())
	if err != nil {
		return err
	}
	if err := k.sched.Activate(t); err != nil {
		return err
	}

	// the deadline check is queued before the next arrival so that, when
	// both fall on the same tick, the miss is recorded before the abort
	n := job.Number
	if err := k.engine.Schedule(job.AbsDeadline, func() error { return k.onDeadline(t, n) }); err != nil {
		return err
	}
	if err := k.engine.Schedule(now+t.Period(), func() error { return k.onArrival(t) }); err != nil {
		return err
	}

	return k.requestDispatch()
}

func (k *Kernel) onDeadline(t *task.Periodic, n uint64) error {
	if err := k.advance(); err != nil {
		return err
	}

	job := t.Job()
	if job != nil && job.Number == n && job.Active() && !job.Missed {
		k.logger.Debug("deadline missed", "task", t.Name(), "job", n, "time", k.engine.Now())
		if err := t.Miss(k.engine.Now(), k.cpu.Name()); err != nil {
			return err
		}
	}
	return k.requestDispatch()
}

func (k *Kernel) onCompletion(epoch uint64) error {
	if epoch != k.epoch {
		// superseded by a later projection
		return nil
	}
	if err := k.advance(); err != nil {
		return err
	}
	return k.requestDispatch()
}

// requestDispatch queues one dispatch at the current tick. Arrivals,
// deadline checks and completions due at this tick were queued earlier and
// fire first, so tasks released together are ordered before any of them
// takes the CPU.
func (k *Kernel) requestDispatch() error {
	if k.dispatchPending {
		return nil
	}
	k.dispatchPending = true
	return k.engine.After(0, k.dispatch)
}

func (k *Kernel) dispatch() error {
	k.dispatchPending = false
	if err := k.advance(); err != nil {
		return err
	}
	return k.reschedule()
}

// advance accounts the work done by the running task since the last update
// and retires completed instructions and jobs
func (k *Kernel) advance() error {
	now := k.engine.Now()
	elapsed := now - k.lastUpdate
	k.lastUpdate = now

	t := k.running
	if t == nil {
		return nil
	}
	if elapsed > 0 {
		t.Consume(float64(elapsed) * k.rate)
	}
	if !t.Step() {
		return nil
	}

	k.sched.Suspend(t)
	k.running = nil
	return t.Finish(now, k.cpu.Name())
}

// reschedule puts the right task on the CPU and projects its completion
func (k *Kernel) reschedule() error {
	now := k.engine.Now()
	cpu := k.cpu.Name()

	next := k.sched.First()
	if k.running != nil && next != k.running && !k.sched.Preempts(next, k.running) {
		next = k.running
	}

	if next != k.running {
		if prev := k.running; prev != nil {
			k.logger.Debug("task preempted", "task", prev.Name(), "by", next.Name(), "time", now)
			if err := prev.Preempt(now, cpu); err != nil {
				return err
			}
		}
		k.running = next
		if next != nil {
			if err := next.Dispatch(now, cpu); err != nil {
				return err
			}
		}
	}

	return k.project()
}

// project sets the CPU workload for the running instruction and schedules
// the completion of that instruction at the current rate
func (k *Kernel) project() error {
	k.epoch++

	t := k.running
	if t == nil {
		k.rate = 0
		return k.cpu.SetWorkload(device.IdleWorkload)
	}

	instr, ok := t.CurrentInstruction()
	if !ok {
		return fmt.Errorf("task %s dispatched without an instruction", t.Name())
	}
	if err := k.cpu.SetWorkload(instr.Workload); err != nil {
		return fmt.Errorf("task %s: %w", t.Name(), err)
	}
	rate, err := k.cpu.CurrentSpeed()
	if err != nil {
		return fmt.Errorf("task %s: %w", t.Name(), err)
	}
	k.rate = rate

	d := sim.Tick(math.Ceil(t.Remaining()/rate - rateEpsilon))
	d = max(d, 1)

	epoch := k.epoch
	return k.engine.After(d, func() error { return k.onCompletion(epoch) })
}
