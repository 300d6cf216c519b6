// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/task"
)

var events = []task.Event{
	{Time: 0, Task: "Task_big_0", CPU: "big_0", Kind: task.Arrival, Job: 1},
	{Time: 0, Task: "Task_big_0", CPU: "big_0", Kind: task.Dispatch, Job: 1},
	{Time: 100, Task: "Task_big_0", CPU: "big_0", Kind: task.DeadlineMiss, Job: 1},
	{Time: 120, Task: "Task_big_0", CPU: "big_0", Kind: task.End, Job: 1, Lateness: 20},
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTextTrace(t *testing.T) {
	t.Run("all events", func(t *testing.T) {
		out := &closeRecorder{}
		tr := NewTextTrace(out, config.TraceLevelAll)
		for _, e := range events {
			require.NoError(t, tr.OnEvent(e))
		}
		require.NoError(t, tr.Close())

		assert.Equal(t, "[0]\tTask_big_0\tarrival\n"+
			"[0]\tTask_big_0\tdispatch\n"+
			"[100]\tTask_big_0\tdeadline-miss\n"+
			"[120]\tTask_big_0\tend\tlateness=20\n", out.String())
		assert.Equal(t, uint64(4), tr.Events())
		assert.True(t, out.closed)
	})

	t.Run("filtered", func(t *testing.T) {
		var out bytes.Buffer
		tr := NewTextTrace(&out, config.TraceDeadlineMiss|config.TraceEnd)
		for _, e := range events {
			require.NoError(t, tr.OnEvent(e))
		}
		require.NoError(t, tr.Flush())

		assert.Equal(t, "[100]\tTask_big_0\tdeadline-miss\n[120]\tTask_big_0\tend\tlateness=20\n", out.String())
		assert.Equal(t, uint64(2), tr.Events())
	})

	t.Run("write error surfaces on flush", func(t *testing.T) {
		tr := NewTextTrace(failingWriter{}, config.TraceLevelAll)
		require.NoError(t, tr.OnEvent(events[0]), "buffered")
		assert.Error(t, tr.Close())
	})
}

func TestJSONTrace(t *testing.T) {
	t.Run("streams a valid array", func(t *testing.T) {
		out := &closeRecorder{}
		tr := NewJSONTrace(out, config.TraceLevelAll)
		for _, e := range events {
			require.NoError(t, tr.OnEvent(e))
		}
		require.NoError(t, tr.Close())
		assert.True(t, out.closed)

		var records []Record
		require.NoError(t, json.Unmarshal(out.Bytes(), &records))
		require.Len(t, records, 4)
		assert.Equal(t, Record{Time: 120, Task: "Task_big_0", CPU: "big_0", Event: "end", Job: 1, Lateness: 20}, records[3])
		assert.Equal(t, "arrival", records[0].Event)

		var raw []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &raw))
		assert.ElementsMatch(t, []string{"time", "task", "cpu", "event", "job", "lateness"}, keys(raw[0]))
	})

	t.Run("empty trace", func(t *testing.T) {
		var out bytes.Buffer
		tr := NewJSONTrace(&out, config.TraceLevelAll)
		require.NoError(t, tr.Close())
		assert.Equal(t, "[]\n", out.String())
	})

	t.Run("filtered", func(t *testing.T) {
		var out bytes.Buffer
		tr := NewJSONTrace(&out, config.TraceArrival)
		for _, e := range events {
			require.NoError(t, tr.OnEvent(e))
		}
		require.NoError(t, tr.Close())

		var records []Record
		require.NoError(t, json.Unmarshal(out.Bytes(), &records))
		require.Len(t, records, 1)
		assert.Equal(t, uint64(1), tr.Events())
	})
}

func TestTracesAreDeterministic(t *testing.T) {
	render := func() (string, string) {
		var text, js bytes.Buffer
		tt := NewTextTrace(&text, config.TraceLevelAll)
		jt := NewJSONTrace(&js, config.TraceLevelAll)
		for _, e := range events {
			require.NoError(t, tt.OnEvent(e))
			require.NoError(t, jt.OnEvent(e))
		}
		require.NoError(t, tt.Close())
		require.NoError(t, jt.Close())
		return text.String(), js.String()
	}

	text1, json1 := render()
	text2, json2 := render()
	assert.Equal(t, text1, text2)
	assert.Equal(t, json1, json2)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
