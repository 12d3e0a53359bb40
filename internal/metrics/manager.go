// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/metrics/collector"
)

type Manager struct {
	registry       *prometheus.Registry
	queueCollector *collector.QueueCollector
	Pipeline       *collector.PipelineCollector
}

// NewManager builds a registry with runtime, queue depth and pipeline collectors.
// stats may be nil.
func NewManager(stats collector.QueueStats) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	queueCollector := collector.NewQueueCollector(stats)
	registry.MustRegister(queueCollector)

	pipeline := collector.NewPipelineCollector(registry)

	log.Info().Msg("metrics: manager initialized with queue and pipeline collectors")

	return &Manager{
		registry:       registry,
		queueCollector: queueCollector,
		Pipeline:       pipeline,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
