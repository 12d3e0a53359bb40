// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// QueueStats reports the current depth of the job queue.
type QueueStats interface {
	Stats(ctx context.Context) (ready, scheduled int64, err error)
}

type QueueCollector struct {
	stats QueueStats

	depthDesc        *prometheus.Desc
	scrapeErrorsDesc *prometheus.Desc
}

func NewQueueCollector(stats QueueStats) *QueueCollector {
	return &QueueCollector{
		stats: stats,

		depthDesc: prometheus.NewDesc(
			namespace+"_queue_depth",
			"Number of queued jobs by state",
			[]string{"state"},
			nil,
		),
		scrapeErrorsDesc: prometheus.NewDesc(
			namespace+"_queue_scrape_errors",
			"Set to 1 when the last queue depth scrape failed",
			nil,
			nil,
		),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depthDesc
	ch <- c.scrapeErrorsDesc
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		log.Debug().Msg("metrics: queue stats source is nil, skipping depth collection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready, scheduled, err := c.stats.Stats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("metrics: failed to read queue depth")
		ch <- prometheus.MustNewConstMetric(c.scrapeErrorsDesc, prometheus.GaugeValue, 1)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.scrapeErrorsDesc, prometheus.GaugeValue, 0)
	ch <- prometheus.MustNewConstMetric(c.depthDesc, prometheus.GaugeValue, float64(ready), "ready")
	ch <- prometheus.MustNewConstMetric(c.depthDesc, prometheus.GaugeValue, float64(scheduled), "scheduled")
}
