// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"fmt"

	"github.com/sustainable-computing-io/rtsim/internal/sim"
)

// State is the scheduling state of the current job of a task
type State int

const (
	Idle State = iota
	Ready
	Running
	Finished
	Missed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Missed:
		return "missed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind is the kind of a scheduling event reported to listeners
type EventKind int

const (
	Arrival EventKind = iota
	Dispatch
	Preempt
	DeadlineMiss
	End
	Abort
)

func (k EventKind) String() string {
	switch k {
	case Arrival:
		return "arrival"
	case Dispatch:
		return "dispatch"
	case Preempt:
		return "preempt"
	case DeadlineMiss:
		return "deadline-miss"
	case End:
		return "end"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered to listeners at the simulated instant it happens
type Event struct {
	Time     sim.Tick
	Task     string
	CPU      string
	Kind     EventKind
	Job      uint64
	Lateness sim.Tick
}

// Listener receives the scheduling events of the tasks it is attached to
type Listener interface {
	OnEvent(Event) error
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(Event) error

func (f ListenerFunc) OnEvent(e Event) error {
	return f(e)
}

// Instruction executes Work abstract units of a workload
type Instruction struct {
	Workload string
	Work     float64
}

func (i Instruction) String() string {
	return fmt.Sprintf("fixed(%g,%s);", i.Work, i.Workload)
}

// Job is one activation of a periodic task
type Job struct {
	Number      uint64
	Arrival     sim.Tick
	AbsDeadline sim.Tick
	State       State
	Missed      bool

	pc        int
	remaining float64
}

// Done reports whether the job has completed its instruction sequence
func (j *Job) Done() bool {
	return j.State == Finished
}

// Active reports whether the job still competes for the CPU
func (j *Job) Active() bool {
	return j.State != Finished && j.State != Idle
}

// Stats are the per task counters accumulated over a run
type Stats struct {
	Activations    uint64
	Completions    uint64
	DeadlineMisses uint64
	Aborts         uint64
	Preemptions    uint64

	MaxLateness       sim.Tick
	MaxResponseTime   sim.Tick
	TotalResponseTime sim.Tick
}

// MeanResponseTime returns the average response time of completed jobs
func (s Stats) MeanResponseTime() float64 {
	if s.Completions == 0 {
		return 0
	}
	return float64(s.TotalResponseTime) / float64(s.Completions)
}
