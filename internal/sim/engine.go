// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
)

// Tick is a point (or a span) of virtual time
type Tick int64

// Handler is a one-shot callback fired when its event is due
type Handler func() error

// InvalidTimeError is returned when an event is scheduled before the current time
type InvalidTimeError struct {
	At  Tick
	Now Tick
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("invalid event time %d: current time is %d", e.At, e.Now)
}

var errNilHandler = errors.New("event handler cannot be nil")

type event struct {
	at      Tick
	seq     uint64
	handler Handler
}

// eventQueue is a min-heap ordered by (time, insertion sequence)
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) {
	*q = append(*q, x.(*event))
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Engine is a single threaded discrete event simulator. Events due at the
// same tick fire in the order they were scheduled.
type Engine struct {
	logger *slog.Logger

	now   Tick
	seq   uint64
	fired uint64
	queue eventQueue

	// run once the current tick has no event left
	tickEnd []Handler
}

// NewEngine creates an Engine with the clock at tick 0
func NewEngine(applyOpts ...OptionFn) *Engine {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Engine{
		logger: opts.logger.With("service", "engine"),
	}
}

// Now returns the current virtual time
func (e *Engine) Now() Tick {
	return e.now
}

// Pending returns the number of events waiting in the queue, stale ones included
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Fired returns the number of events fired so far
func (e *Engine) Fired() uint64 {
	return e.fired
}

// Schedule enqueues h to fire at the given time
func (e *Engine) Schedule(at Tick, h Handler) error {
	if at < e.now {
		return &InvalidTimeError{At: at, Now: e.now}
	}
	if h == nil {
		return errNilHandler
	}

	heap.Push(&e.queue, &event{at: at, seq: e.seq, handler: h})
	e.seq++
	return nil
}

// After enqueues h to fire d ticks from now
func (e *Engine) After(d Tick, h Handler) error {
	return e.Schedule(e.now+d, h)
}

// AtTickEnd registers h to run once, after the last event due at the
// current tick has fired and before the clock moves on. It is not an event:
// it does not count as fired and does not change the order of events.
func (e *Engine) AtTickEnd(h Handler) error {
	if h == nil {
		return errNilHandler
	}
	e.tickEnd = append(e.tickEnd, h)
	return nil
}

// Step fires the earliest pending event. It returns false when the queue is empty.
func (e *Engine) Step() (bool, error) {
	if e.queue.Len() == 0 {
		return false, nil
	}
	return true, e.fire()
}

// Run fires events in order until the queue is exhausted or the next event
// is due after until. When the horizon is reached the clock rests at until.
// The first handler error stops the run.
func (e *Engine) Run(until Tick) error {
	if until < e.now {
		return &InvalidTimeError{At: until, Now: e.now}
	}

	e.logger.Debug("simulation run started", "from", e.now, "until", until, "pending", e.queue.Len())
	for e.queue.Len() > 0 {
		if e.queue[0].at > until {
			e.now = until
			break
		}
		if err := e.fire(); err != nil {
			return err
		}
	}
	e.logger.Debug("simulation run stopped", "now", e.now, "fired", e.fired, "pending", e.queue.Len())
	return nil
}

func (e *Engine) fire() error {
	ev := heap.Pop(&e.queue).(*event)
	e.now = ev.at
	e.fired++
	if err := ev.handler(); err != nil {
		return fmt.Errorf("event at tick %d failed: %w", ev.at, err)
	}
	return e.endTick()
}

// endTick runs the tick end handlers once no event is left at the current tick
func (e *Engine) endTick() error {
	for len(e.tickEnd) > 0 {
		if e.queue.Len() > 0 && e.queue[0].at == e.now {
			return nil
		}
		handlers := e.tickEnd
		e.tickEnd = nil
		for _, h := range handlers {
			if err := h(); err != nil {
				return fmt.Errorf("end of tick %d failed: %w", e.now, err)
			}
		}
	}
	return nil
}
