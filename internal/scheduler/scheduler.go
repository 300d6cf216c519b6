// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/sustainable-computing-io/rtsim/internal/task"
)

const (
	EDF = "edf"
	RM  = "rm"
)

// Kinds returns the accepted scheduling policies
func Kinds() []string {
	return []string{EDF, RM}
}

// DuplicateTaskError is returned when a task name is registered twice
type DuplicateTaskError struct {
	Task string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %s already registered", e.Task)
}

// UnknownTaskError is returned for operations on a task that was never registered
type UnknownTaskError struct {
	Task string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %s is not registered", e.Task)
}

// policy orders the ready queue. priority compares only the key that may
// trigger a preemption; compare adds the deterministic tie-breaks.
type policy struct {
	name     string
	priority func(a, b *task.Periodic) int
}

func (p policy) compare(a, b *task.Periodic) int {
	if c := p.priority(a, b); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Job().Arrival, b.Job().Arrival); c != 0 {
		return c
	}
	return strings.Compare(a.Name(), b.Name())
}

var (
	edfPolicy = policy{
		name: EDF,
		priority: func(a, b *task.Periodic) int {
			return cmp.Compare(a.Job().AbsDeadline, b.Job().AbsDeadline)
		},
	}
	rmPolicy = policy{
		name: RM,
		priority: func(a, b *task.Periodic) int {
			return cmp.Compare(a.Period(), b.Period())
		},
	}
)

// Scheduler keeps the registered tasks of one CPU and the ordered set of
// those with an active job
type Scheduler struct {
	policy policy
	tasks  map[string]*task.Periodic
	order  []*task.Periodic
	ready  []*task.Periodic
}

// NewEDF returns an earliest deadline first scheduler.
// Ties are broken by arrival time and then by task name.
func NewEDF() *Scheduler {
	return newScheduler(edfPolicy)
}

// NewRM returns a rate monotonic scheduler: shorter periods first
func NewRM() *Scheduler {
	return newScheduler(rmPolicy)
}

// New returns the scheduler for the given policy name
func New(kind string) (*Scheduler, error) {
	switch kind {
	case EDF, "":
		return NewEDF(), nil
	case RM:
		return NewRM(), nil
	default:
		return nil, fmt.Errorf("unknown scheduler: %s", kind)
	}
}

func newScheduler(p policy) *Scheduler {
	return &Scheduler{
		policy: p,
		tasks:  map[string]*task.Periodic{},
	}
}

func (s *Scheduler) Name() string {
	return s.policy.name
}

// AddTask registers t
func (s *Scheduler) AddTask(t *task.Periodic) error {
	if _, dup := s.tasks[t.Name()]; dup {
		return &DuplicateTaskError{Task: t.Name()}
	}
	s.tasks[t.Name()] = t
	s.order = append(s.order, t)
	return nil
}

// RemoveTask deregisters t and drops it from the ready set
func (s *Scheduler) RemoveTask(t *task.Periodic) error {
	if _, ok := s.tasks[t.Name()]; !ok {
		return &UnknownTaskError{Task: t.Name()}
	}
	s.Suspend(t)
	delete(s.tasks, t.Name())
	s.order = slices.DeleteFunc(s.order, func(o *task.Periodic) bool { return o == t })
	return nil
}

// Activate inserts t in the ready set; its current job must be set
func (s *Scheduler) Activate(t *task.Periodic) error {
	if _, ok := s.tasks[t.Name()]; !ok {
		return &UnknownTaskError{Task: t.Name()}
	}
	if t.Job() == nil {
		return fmt.Errorf("task %s: %w", t.Name(), task.ErrNoActiveJob)
	}

	s.Suspend(t)
	idx, _ := slices.BinarySearchFunc(s.ready, t, s.policy.compare)
	s.ready = slices.Insert(s.ready, idx, t)
	return nil
}

// Suspend removes t from the ready set, if present
func (s *Scheduler) Suspend(t *task.Periodic) {
	s.ready = slices.DeleteFunc(s.ready, func(o *task.Periodic) bool { return o == t })
}

// First returns the highest priority task with an active job, nil if none
func (s *Scheduler) First() *task.Periodic {
	if len(s.ready) == 0 {
		return nil
	}
	return s.ready[0]
}

// Preempts reports whether candidate should take the CPU from running. Only
// a strictly higher priority preempts; tie-breaks never do.
func (s *Scheduler) Preempts(candidate, running *task.Periodic) bool {
	if running == nil {
		return candidate != nil
	}
	if candidate == nil {
		return false
	}
	return s.policy.priority(candidate, running) < 0
}

// Ready returns the ready set in priority order
func (s *Scheduler) Ready() []*task.Periodic {
	return slices.Clone(s.ready)
}

// Len returns the size of the ready set
func (s *Scheduler) Len() int {
	return len(s.ready)
}

// Tasks returns the registered tasks in registration order
func (s *Scheduler) Tasks() []*task.Periodic {
	return slices.Clone(s.order)
}
