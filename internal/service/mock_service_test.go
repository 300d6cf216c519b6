// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockService implements Service only
type mockService struct {
	name string
}

func (m *mockService) Name() string {
	return m.name
}

// mockFull implements every lifecycle interface; expectations are set with testify
type mockFull struct {
	mock.Mock
	name string
}

func newMockFull(name string) *mockFull {
	return &mockFull{name: name}
}

func (m *mockFull) Name() string {
	return m.name
}

func (m *mockFull) Init() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockFull) Run(ctx context.Context) error {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func(context.Context) error); ok {
		return fn(ctx)
	}
	return args.Error(0)
}

func (m *mockFull) Shutdown() error {
	args := m.Called()
	return args.Error(0)
}

// mockInitializer implements Initializer without Shutdowner
type mockInitializer struct {
	mockService
	err   error
	calls int
}

func (m *mockInitializer) Init() error {
	m.calls++
	return m.err
}

// mockRunner implements Runner without Shutdowner
type mockRunner struct {
	mockService
	runFn func(ctx context.Context) error
}

func (m *mockRunner) Run(ctx context.Context) error {
	return m.runFn(ctx)
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
