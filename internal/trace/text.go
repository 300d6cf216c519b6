// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/task"
)

// TextTrace writes one line per task event:
//
//	[<time>]\t<task>\t<event>[\tlateness=<ticks>]
type TextTrace struct {
	w      *bufio.Writer
	closer io.Closer
	level  config.TraceLevel
	events uint64
}

var _ task.Listener = (*TextTrace)(nil)

// NewTextTrace writes to w the events enabled in level. Close closes w when
// it is an io.Closer.
func NewTextTrace(w io.Writer, level config.TraceLevel) *TextTrace {
	t := &TextTrace{w: bufio.NewWriter(w), level: level}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

func (t *TextTrace) OnEvent(e task.Event) error {
	if !t.level.Enabled(e.Kind.String()) {
		return nil
	}
	t.events++

	if _, err := fmt.Fprintf(t.w, "[%d]\t%s\t%s", e.Time, e.Task, e.Kind); err != nil {
		return err
	}
	if e.Lateness > 0 {
		if _, err := fmt.Fprintf(t.w, "\tlateness=%d", e.Lateness); err != nil {
			return err
		}
	}
	return t.w.WriteByte('\n')
}

// Events returns the number of events written
func (t *TextTrace) Events() uint64 {
	return t.events
}

func (t *TextTrace) Flush() error {
	return t.w.Flush()
}

func (t *TextTrace) Close() error {
	err := t.w.Flush()
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
