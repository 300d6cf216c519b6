// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/sim"
	"github.com/sustainable-computing-io/rtsim/internal/task"
)

// Record is the JSON form of a task event
type Record struct {
	Time     sim.Tick `json:"time"`
	Task     string   `json:"task"`
	CPU      string   `json:"cpu"`
	Event    string   `json:"event"`
	Job      uint64   `json:"job"`
	Lateness sim.Tick `json:"lateness"`
}

// JSONTrace streams task events as the elements of one JSON array. The array
// is terminated by Close.
type JSONTrace struct {
	w      *bufio.Writer
	closer io.Closer
	level  config.TraceLevel
	events uint64
}

var _ task.Listener = (*JSONTrace)(nil)

func NewJSONTrace(w io.Writer, level config.TraceLevel) *JSONTrace {
	t := &JSONTrace{w: bufio.NewWriter(w), level: level}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

func (t *JSONTrace) OnEvent(e task.Event) error {
	if !t.level.Enabled(e.Kind.String()) {
		return nil
	}

	data, err := json.Marshal(Record{
		Time:     e.Time,
		Task:     e.Task,
		CPU:      e.CPU,
		Event:    e.Kind.String(),
		Job:      e.Job,
		Lateness: e.Lateness,
	})
	if err != nil {
		return err
	}

	sep := ",\n  "
	if t.events == 0 {
		sep = "[\n  "
	}
	t.events++

	if _, err := t.w.WriteString(sep); err != nil {
		return err
	}
	_, err = t.w.Write(data)
	return err
}

// Events returns the number of events written
func (t *JSONTrace) Events() uint64 {
	return t.events
}

func (t *JSONTrace) Close() error {
	end := "\n]\n"
	if t.events == 0 {
		end = "[]\n"
	}
	_, err := t.w.WriteString(end)
	if ferr := t.w.Flush(); err == nil {
		err = ferr
	}
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
