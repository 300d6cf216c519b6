// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sustainable-computing-io/rtsim/internal/sim"
)

// workEpsilon absorbs floating point residue when work is consumed at a
// fractional rate
const workEpsilon = 1e-9

var (
	ErrNoCode      = errors.New("task has no instructions")
	ErrNoActiveJob = errors.New("task has no active job")
)

// Periodic is a task released every period ticks starting at phase. Each
// release creates a job that must execute the instruction sequence before
// arrival + deadline.
type Periodic struct {
	name     string
	period   sim.Tick
	deadline sim.Tick
	phase    sim.Tick

	code      []Instruction
	job       *Job
	jobs      uint64
	stats     Stats
	listeners []Listener
}

// NewPeriodic creates a task. A zero deadline means the deadline equals the period.
func NewPeriodic(name string, period, deadline, phase sim.Tick) (*Periodic, error) {
	if name == "" {
		return nil, errors.New("task name cannot be empty")
	}
	if period <= 0 {
		return nil, fmt.Errorf("task %s: period must be > 0, got %d", name, period)
	}
	if deadline == 0 {
		deadline = period
	}
	if deadline < 0 || deadline > period {
		return nil, fmt.Errorf("task %s: deadline must be in (0, %d], got %d", name, period, deadline)
	}
	if phase < 0 {
		return nil, fmt.Errorf("task %s: phase must be >= 0, got %d", name, phase)
	}

	return &Periodic{
		name:     name,
		period:   period,
		deadline: deadline,
		phase:    phase,
	}, nil
}

func (t *Periodic) Name() string       { return t.name }
func (t *Periodic) Period() sim.Tick   { return t.period }
func (t *Periodic) Deadline() sim.Tick { return t.deadline }
func (t *Periodic) Phase() sim.Tick    { return t.phase }
func (t *Periodic) Stats() Stats       { return t.stats }

// Code returns a copy of the instruction sequence
func (t *Periodic) Code() []Instruction {
	return slices.Clone(t.code)
}

// InsertCode parses code and appends it to the instruction sequence
func (t *Periodic) InsertCode(code string) error {
	instrs, err := ParseCode(code)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.name, err)
	}
	t.code = append(t.code, instrs...)
	return nil
}

// OverrideWorkload makes every instruction execute the given workload
func (t *Periodic) OverrideWorkload(label string) {
	for i := range t.code {
		t.code[i].Workload = label
	}
}

// Workloads returns the distinct workload labels used by the task in order of appearance
func (t *Periodic) Workloads() []string {
	var labels []string
	for _, i := range t.code {
		if !slices.Contains(labels, i.Workload) {
			labels = append(labels, i.Workload)
		}
	}
	return labels
}

// AddListener attaches l to the task; listeners are notified in the order they were added
func (t *Periodic) AddListener(l Listener) {
	t.listeners = append(t.listeners, l)
}

// Job returns the current (or last) job, nil before the first arrival
func (t *Periodic) Job() *Job {
	return t.job
}

// State returns the state of the current job
func (t *Periodic) State() State {
	if t.job == nil {
		return Idle
	}
	return t.job.State
}

// CurrentInstruction returns the instruction the current job is executing
func (t *Periodic) CurrentInstruction() (Instruction, bool) {
	if t.job == nil || t.job.Done() || t.job.pc >= len(t.code) {
		return Instruction{}, false
	}
	return t.code[t.job.pc], true
}

// Remaining returns the work left in the current instruction
func (t *Periodic) Remaining() float64 {
	if t.job == nil {
		return 0
	}
	return t.job.remaining
}

// Consume executes work units of the current instruction
func (t *Periodic) Consume(work float64) {
	if t.job == nil || work <= 0 {
		return
	}
	t.job.remaining -= work
	if t.job.remaining < workEpsilon {
		t.job.remaining = 0
	}
}

// Step moves past the current instruction once its work is exhausted. It
// returns true when the whole sequence is done.
func (t *Periodic) Step() bool {
	j := t.job
	if j == nil {
		return false
	}
	for j.remaining == 0 {
		j.pc++
		if j.pc >= len(t.code) {
			return true
		}
		j.remaining = t.code[j.pc].Work
	}
	return false
}

// Arrive releases a new job at now
func (t *Periodic) Arrive(now sim.Tick, cpu string) (*Job, error) {
	if len(t.code) == 0 {
		return nil, fmt.Errorf("task %s: %w", t.name, ErrNoCode)
	}

	t.jobs++
	t.job = &Job{
		Number:      t.jobs,
		Arrival:     now,
		AbsDeadline: now + t.deadline,
		State:       Ready,
		remaining:   t.code[0].Work,
	}
	t.stats.Activations++
	return t.job, t.notify(now, cpu, Arrival, 0)
}

// Dispatch marks the current job as running
func (t *Periodic) Dispatch(now sim.Tick, cpu string) error {
	if t.job == nil {
		return fmt.Errorf("task %s: dispatch: %w", t.name, ErrNoActiveJob)
	}
	if !t.job.Missed {
		t.job.State = Running
	}
	return t.notify(now, cpu, Dispatch, 0)
}

// Preempt moves the running job back to the ready state, keeping its progress
func (t *Periodic) Preempt(now sim.Tick, cpu string) error {
	if t.job == nil {
		return fmt.Errorf("task %s: preempt: %w", t.name, ErrNoActiveJob)
	}
	if !t.job.Missed {
		t.job.State = Ready
	}
	t.stats.Preemptions++
	return t.notify(now, cpu, Preempt, 0)
}

// Miss records that the current job passed its absolute deadline unfinished.
// The job stays schedulable.
func (t *Periodic) Miss(now sim.Tick, cpu string) error {
	if t.job == nil {
		return fmt.Errorf("task %s: miss: %w", t.name, ErrNoActiveJob)
	}
	t.job.State = Missed
	t.job.Missed = true
	t.stats.DeadlineMisses++
	return t.notify(now, cpu, DeadlineMiss, now-t.job.AbsDeadline)
}

// Finish completes the current job
func (t *Periodic) Finish(now sim.Tick, cpu string) error {
	j := t.job
	if j == nil {
		return fmt.Errorf("task %s: finish: %w", t.name, ErrNoActiveJob)
	}
	j.State = Finished

	response := now - j.Arrival
	lateness := max(now-j.AbsDeadline, 0)
	t.stats.Completions++
	t.stats.TotalResponseTime += response
	t.stats.MaxResponseTime = max(t.stats.MaxResponseTime, response)
	t.stats.MaxLateness = max(t.stats.MaxLateness, lateness)
	return t.notify(now, cpu, End, lateness)
}

// Abort drops the current unfinished job
func (t *Periodic) Abort(now sim.Tick, cpu string) error {
	j := t.job
	if j == nil {
		return fmt.Errorf("task %s: abort: %w", t.name, ErrNoActiveJob)
	}
	j.State = Idle
	t.stats.Aborts++
	return t.notify(now, cpu, Abort, max(now-j.AbsDeadline, 0))
}

func (t *Periodic) notify(now sim.Tick, cpu string, kind EventKind, lateness sim.Tick) error {
	ev := Event{
		Time:     now,
		Task:     t.name,
		CPU:      cpu,
		Kind:     kind,
		Job:      t.job.Number,
		Lateness: lateness,
	}
	for _, l := range t.listeners {
		if err := l.OnEvent(ev); err != nil {
			return fmt.Errorf("task %s: listener failed on %s: %w", t.name, kind, err)
		}
	}
	return nil
}

func (t *Periodic) String() string {
	return fmt.Sprintf("%s(T=%d D=%d O=%d)", t.name, t.period, t.deadline, t.phase)
}
