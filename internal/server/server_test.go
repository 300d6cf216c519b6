// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIServer(t *testing.T) {
	tt := []struct {
		name  string
		opts  []OptionFn
		addrs []string
	}{{
		name:  "default options",
		opts:  []OptionFn{},
		addrs: []string{":28283"},
	}, {
		name: "with custom logger",
		opts: []OptionFn{
			WithLogger(slog.Default().With("test", "custom")),
		},
		addrs: []string{":28283"},
	}, {
		name: "with custom listen address",
		opts: []OptionFn{
			WithListen([]string{":8080", ":8081"}, ""),
		},
		addrs: []string{":8080", ":8081"},
	}}

	for _, tt := range tt {
		t.Run(tt.name, func(t *testing.T) {
			server := NewAPIServer(tt.opts...)

			assert.NotNil(t, server)
			assert.Equal(t, "api-server", server.Name())
			assert.NotNil(t, server.mux)
			assert.NotNil(t, server.logger)
			assert.Equal(t, tt.addrs, *server.webConfig.WebListenAddresses)
		})
	}
}

func TestAPIServer_Init(t *testing.T) {
	t.Run("landing page", func(t *testing.T) {
		server := NewAPIServer()
		require.NoError(t, server.Init())
		require.NoError(t, server.Register("/metrics", "Metrics", "Prometheus metrics", http.NotFoundHandler()))

		rec := httptest.NewRecorder()
		server.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<h1>rtsim</h1>")
		assert.Contains(t, rec.Body.String(), `<a href="/metrics"> Metrics </a> Prometheus metrics`)

		rec = httptest.NewRecorder()
		server.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no listen address", func(t *testing.T) {
		server := NewAPIServer(WithListen([]string{}, ""))
		err := server.Init()
		assert.ErrorContains(t, err, "no listening address provided")
	})
}

func TestAPIServer_Run(t *testing.T) {
	server := NewAPIServer(WithListen([]string{"127.0.0.1:0"}, ""))
	require.NoError(t, server.Init())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	startTime := time.Now()
	err := server.Run(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(startTime), 50*time.Millisecond,
		"Run should block until context is done")
	assert.NoError(t, server.Shutdown())
}

func TestAPIServer_RunWithCancelledContext(t *testing.T) {
	server := NewAPIServer(WithListen([]string{"127.0.0.1:0"}, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, server.Run(ctx))
	assert.NoError(t, server.Shutdown())
}

func TestAPIServer_RunWithBadWebConfig(t *testing.T) {
	server := NewAPIServer(WithListen([]string{"127.0.0.1:0"}, "/does/not/exist.yaml"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, server.Run(ctx))
}

func TestAPIServer_Shutdown(t *testing.T) {
	server := NewAPIServer()
	assert.NoError(t, server.Shutdown())
}

func TestAPIServer_Register(t *testing.T) {
	server := NewAPIServer()

	handler1 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler2 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	require.NoError(t, server.Register("/endpoint1", "Endpoint 1", "First test endpoint", handler1))
	require.NoError(t, server.Register("/endpoint2", "Endpoint 2", "Second test endpoint", handler2))

	assert.Contains(t, server.endpointDescription, "/endpoint1")
	assert.Contains(t, server.endpointDescription, "Second test endpoint")

	_, pattern1 := server.mux.Handler(&http.Request{URL: &url.URL{Path: "/endpoint1"}})
	_, pattern2 := server.mux.Handler(&http.Request{URL: &url.URL{Path: "/endpoint2"}})
	assert.Equal(t, "/endpoint1", pattern1)
	assert.Equal(t, "/endpoint2", pattern2)
}
