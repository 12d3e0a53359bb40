// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/queue"
	"github.com/autobrr/plexreshare/internal/services/reshare"
)

const namespace = "plexreshare"

// PipelineCollector counts crawl, extract and reconcile progress and job outcomes.
type PipelineCollector struct {
	PagesCrawledTotal     *prometheus.CounterVec
	ItemsMergedTotal      *prometheus.CounterVec
	ItemsSkippedTotal     *prometheus.CounterVec
	ReconcileRunsTotal    *prometheus.CounterVec
	PublishedEntries      *prometheus.GaugeVec
	RetractedEntriesTotal *prometheus.CounterVec
	CollisionsTotal       *prometheus.CounterVec
	JobsTotal             *prometheus.CounterVec
	JobDuration           *prometheus.HistogramVec
}

var (
	_ reshare.Recorder = (*PipelineCollector)(nil)
	_ queue.Observer   = (*PipelineCollector)(nil)
)

func NewPipelineCollector(r *prometheus.Registry) *PipelineCollector {
	m := &PipelineCollector{
		PagesCrawledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "pages_total",
			Help:      "Total number of library and episode pages fetched",
		}, []string{"media_type"}),
		ItemsMergedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "items_merged_total",
			Help:      "Total number of media parts merged into node hashes",
		}, []string{"media_type"}),
		ItemsSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "items_skipped_total",
			Help:      "Total number of media parts rejected by the filter",
		}, []string{"media_type", "reason"}),
		ReconcileRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconcile runs",
		}, []string{"media_type"}),
		PublishedEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "published_entries",
			Help:      "Entries published by the last reconcile of a node",
		}, []string{"media_type", "node", "kind"}),
		RetractedEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "retracted_entries_total",
			Help:      "Total number of stale entries removed",
		}, []string{"media_type"}),
		CollisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "collisions_total",
			Help:      "Total number of paths dropped because a directory and a file shared a name",
		}, []string{"media_type"}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Total number of processed jobs by outcome",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Job handler duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
	}

	r.MustRegister(
		m.PagesCrawledTotal,
		m.ItemsMergedTotal,
		m.ItemsSkippedTotal,
		m.ReconcileRunsTotal,
		m.PublishedEntries,
		m.RetractedEntriesTotal,
		m.CollisionsTotal,
		m.JobsTotal,
		m.JobDuration,
	)
	return m
}

func (m *PipelineCollector) PageCrawled(mediaType domain.MediaType) {
	m.PagesCrawledTotal.WithLabelValues(string(mediaType)).Inc()
}

func (m *PipelineCollector) ItemsMerged(mediaType domain.MediaType, n int) {
	if n <= 0 {
		return
	}
	m.ItemsMergedTotal.WithLabelValues(string(mediaType)).Add(float64(n))
}

func (m *PipelineCollector) ItemSkipped(mediaType domain.MediaType, reason reshare.SkipReason) {
	m.ItemsSkippedTotal.WithLabelValues(string(mediaType), string(reason)).Inc()
}

func (m *PipelineCollector) Reconciled(result *reshare.ReconcileResult) {
	if result == nil {
		return
	}
	mediaType := string(result.MediaType)
	m.ReconcileRunsTotal.WithLabelValues(mediaType).Inc()
	m.PublishedEntries.WithLabelValues(mediaType, result.Node, "file").Set(float64(result.Leaves))
	m.PublishedEntries.WithLabelValues(mediaType, result.Node, "directory").Set(float64(result.Directories))
	if result.Deleted > 0 {
		m.RetractedEntriesTotal.WithLabelValues(mediaType).Add(float64(result.Deleted))
	}
	if result.Collisions > 0 {
		m.CollisionsTotal.WithLabelValues(mediaType).Add(float64(result.Collisions))
	}
}

func (m *PipelineCollector) JobFinished(name string, outcome queue.Outcome, elapsed time.Duration) {
	m.JobsTotal.WithLabelValues(name, string(outcome)).Inc()
	m.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}
