// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats struct{}

func (fixedStats) Stats(context.Context) (int64, int64, error) { return 3, 5, nil }

func TestNewManager(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.registry)
	assert.NotNil(t, manager.queueCollector)
	assert.NotNil(t, manager.Pipeline)
}

func TestManager_GetRegistry(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)

	registry := manager.GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	foundGoMetrics := false
	foundProcessMetrics := false

	for _, mf := range metricFamilies {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") {
			foundGoMetrics = true
		}
		if strings.HasPrefix(name, "process_") {
			foundProcessMetrics = true
		}
	}

	assert.True(t, foundGoMetrics, "Go runtime metrics should be registered (go_* metrics)")
	if runtime.GOOS == "darwin" {
		assert.False(t, foundProcessMetrics, "Process metrics should NOT be available on macOS")
	} else {
		assert.True(t, foundProcessMetrics, "Process metrics should be registered on Linux/Windows")
	}
}

func TestManager_RegistryIsolation(t *testing.T) {
	t.Parallel()

	manager1 := NewManager(nil)
	manager2 := NewManager(nil)

	assert.NotSame(t, manager1.registry, manager2.registry, "Each manager should have its own registry")
	assert.NotSame(t, manager1.Pipeline, manager2.Pipeline, "Each manager should have its own pipeline collector")
}

func TestManager_QueueDepth(t *testing.T) {
	t.Parallel()

	manager := NewManager(fixedStats{})

	metricFamilies, err := manager.GetRegistry().Gather()
	require.NoError(t, err)

	depth := map[string]float64{}
	for _, mf := range metricFamilies {
		if mf.GetName() != "plexreshare_queue_depth" {
			continue
		}
		for _, m := range mf.GetMetric() {
			depth[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{"ready": 3, "scheduled": 5}, depth)
}

func TestManager_MetricsCanBeScraped(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)

	metricCount := testutil.CollectAndCount(manager.GetRegistry())

	assert.Greater(t, metricCount, 0, "Should be able to collect metrics")
}
