// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sustainable-computing-io/rtsim/config"
	"github.com/sustainable-computing-io/rtsim/internal/logger"
	testingclock "k8s.io/utils/clock/testing"
)

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) Name() string {
	return "mock-reporter"
}

func (m *mockReporter) Report(s *Snapshot) error {
	args := m.Called(s)
	return args.Error(0)
}

func newTestSimulator(t *testing.T, opts ...OptionFn) (*Simulator, *testingclock.FakeClock) {
	t.Helper()
	cfg := testConfig(t, "")
	cfg.Simulation.Horizon = 2000

	fakeClock := testingclock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	opts = append([]OptionFn{WithLogger(logger.Discard()), WithClock(fakeClock)}, opts...)
	return NewSimulator(cfg, opts...), fakeClock
}

func TestSimulatorInit(t *testing.T) {
	sim, _ := newTestSimulator(t)
	assert.Equal(t, "simulator", sim.Name())
	assert.NoError(t, sim.Init())

	cfg := config.DefaultConfig()
	cfg.Simulation.Horizon = 0
	bad := NewSimulator(cfg, WithLogger(logger.Discard()))
	assert.ErrorContains(t, bad.Init(), "invalid configuration")
}

func TestSimulatorSnapshot(t *testing.T) {
	sim, fakeClock := newTestSimulator(t)

	select {
	case <-sim.DataChannel():
		t.Fatal("no data expected before the first snapshot")
	default:
	}

	s1, err := sim.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, fakeClock.Now(), s1.Timestamp)
	assert.Zero(t, s1.Elapsed, "fake clock does not move")
	assert.Len(t, s1.CPUs, 8)

	select {
	case <-sim.DataChannel():
	default:
		t.Fatal("expected a data signal after the run")
	}

	// later calls reuse the snapshot and return copies
	fakeClock.Step(time.Hour)
	s2, err := sim.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.NotSame(t, s1, s2)

	s2.CPUs[0].Energy = 0
	s3, err := sim.Snapshot()
	require.NoError(t, err)
	assert.NotZero(t, s3.CPUs[0].Energy)
}

func TestSimulatorConcurrentSnapshots(t *testing.T) {
	sim, _ := newTestSimulator(t)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*Snapshot, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = sim.Snapshot()
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Len(t, sim.DataChannel(), 1)
}

func TestSimulatorRun(t *testing.T) {
	t.Run("reports and returns", func(t *testing.T) {
		r := &mockReporter{}
		r.On("Report", mock.AnythingOfType("*simulation.Snapshot")).Return(nil).Once()

		sim, _ := newTestSimulator(t, WithReporters(r))
		require.NoError(t, sim.Run(context.Background()))
		r.AssertExpectations(t)

		s := r.Calls[0].Arguments.Get(0).(*Snapshot)
		assert.Len(t, s.Tasks, 2)
	})

	t.Run("added reporter", func(t *testing.T) {
		first := &mockReporter{}
		first.On("Report", mock.Anything).Return(nil).Once()
		added := &mockReporter{}
		added.On("Report", mock.Anything).Return(nil).Once()

		sim, _ := newTestSimulator(t, WithReporters(first))
		sim.AddReporter(added)
		require.NoError(t, sim.Run(context.Background()))
		first.AssertExpectations(t)
		added.AssertExpectations(t)
	})

	t.Run("reporter error", func(t *testing.T) {
		r := &mockReporter{}
		r.On("Report", mock.Anything).Return(errors.New("boom"))
		ok := &mockReporter{}
		ok.On("Report", mock.Anything).Return(nil)

		sim, _ := newTestSimulator(t, WithReporters(r, ok))
		err := sim.Run(context.Background())
		assert.ErrorContains(t, err, "boom")
		ok.AssertNumberOfCalls(t, "Report", 1)
	})

	t.Run("simulation error", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Tasks[0].CPU = "nope"
		r := &mockReporter{}
		sim := NewSimulator(cfg, WithLogger(logger.Discard()), WithReporters(r))

		assert.Error(t, sim.Run(context.Background()))
		r.AssertNotCalled(t, "Report", mock.Anything)

		_, err := sim.Snapshot()
		assert.Error(t, err)
	})

	t.Run("keep alive", func(t *testing.T) {
		sim, _ := newTestSimulator(t, WithKeepAlive(true))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- sim.Run(ctx) }()

		<-sim.DataChannel()
		select {
		case <-done:
			t.Fatal("Run returned before its context was canceled")
		case <-time.After(50 * time.Millisecond):
		}

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	assert.NoError(t, (&Simulator{logger: logger.Discard()}).Shutdown())
}

func TestSnapshotHelpers(t *testing.T) {
	var nilSnapshot *Snapshot
	assert.Nil(t, nilSnapshot.Clone())

	s := &Snapshot{
		CPUs: []CPU{
			{Name: "a_0", Cluster: "a", Energy: 10},
			{Name: "b_0", Cluster: "b", Energy: 5},
		},
		Tasks: []Task{{Name: "t", DeadlineMisses: 2}, {Name: "u", DeadlineMisses: 1}},
	}
	assert.EqualValues(t, 15, s.TotalEnergy())
	assert.EqualValues(t, 5, s.ClusterEnergy("b"))
	assert.EqualValues(t, 3, s.DeadlineMisses())

	_, ok := s.FindCPU("c_0")
	assert.False(t, ok)
	_, ok = s.FindTask("v")
	assert.False(t, ok)

	c := s.Clone()
	c.Tasks[0].Name = "changed"
	assert.Equal(t, "t", s.Tasks[0].Name)
}
