// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/plexreshare/internal/queue"
)

func serve(t *testing.T, srv *MetricsServer, path string, creds ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(creds) == 2 {
		req.SetBasicAuth(creds[0], creds[1])
	}
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestParseBasicAuthUsers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want map[string]string
	}{
		{raw: "", want: map[string]string{}},
		{raw: "prom:scrape", want: map[string]string{"prom": "scrape"}},
		{raw: " a:1 , b:2 ", want: map[string]string{"a": "1", "b": "2"}},
		{raw: "a:1,nocolon,:nouser,b:", want: map[string]string{"a": "1", "b": ""}},
		{raw: "a:pass:with:colons", want: map[string]string{"a": "pass:with:colons"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseBasicAuthUsers(tt.raw))
		})
	}
}

func TestNewMetricsServer_Addr(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)
	srv := NewMetricsServer(manager, "127.0.0.1", 9074, "prom:scrape")
	assert.Equal(t, "127.0.0.1:9074", srv.server.Addr)
	assert.Same(t, manager, srv.manager)
	assert.Len(t, srv.basicAuthUsers, 1)

	srv = NewMetricsServer(manager, "::1", 9074, "")
	assert.Equal(t, "[::1]:9074", srv.server.Addr)
}

func TestMetricsServer_Routes(t *testing.T) {
	t.Parallel()

	open := NewMetricsServer(NewManager(fixedStats{}), "localhost", 9074, "")
	guarded := NewMetricsServer(NewManager(fixedStats{}), "localhost", 9074, "prom:scrape")

	tests := []struct {
		name   string
		srv    *MetricsServer
		path   string
		creds  []string
		status int
	}{
		{name: "metrics open", srv: open, path: "/metrics", status: http.StatusOK},
		{name: "health open", srv: open, path: "/health", status: http.StatusOK},
		{name: "unknown route", srv: open, path: "/debug", status: http.StatusNotFound},
		{name: "metrics without credentials", srv: guarded, path: "/metrics", status: http.StatusUnauthorized},
		{name: "metrics with wrong password", srv: guarded, path: "/metrics", creds: []string{"prom", "nope"}, status: http.StatusUnauthorized},
		{name: "metrics with credentials", srv: guarded, path: "/metrics", creds: []string{"prom", "scrape"}, status: http.StatusOK},
		{name: "health skips auth", srv: guarded, path: "/health", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, tt.srv, tt.path, tt.creds...)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="metrics"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestMetricsServer_ExposesPipelineAndQueue(t *testing.T) {
	t.Parallel()

	manager := NewManager(fixedStats{})
	manager.Pipeline.JobFinished("discover", queue.OutcomeSucceeded, time.Second)
	srv := NewMetricsServer(manager, "localhost", 9074, "")

	rec := serve(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	body := rec.Body.String()
	assert.Contains(t, body, `plexreshare_queue_jobs_total{job="discover",outcome="succeeded"} 1`)
	assert.Contains(t, body, `plexreshare_queue_depth{state="ready"} 3`)
	assert.Contains(t, body, `plexreshare_queue_depth{state="scheduled"} 5`)
	assert.Contains(t, body, "go_goroutines")

	health := serve(t, srv, "/health")
	assert.Equal(t, "OK", health.Body.String())
}

func TestMetricsServer_Lifecycle(t *testing.T) {
	srv := NewMetricsServer(NewManager(nil), "127.0.0.1", 0, "")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-errCh, "a closed server is a clean exit")

	stopped := NewMetricsServer(NewManager(nil), "127.0.0.1", 0, "")
	assert.NoError(t, stopped.Stop())
}
