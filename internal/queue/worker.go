// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// HandlerFunc processes one job. A returned error schedules a retry.
type HandlerFunc func(ctx context.Context, job *Job) error

// Outcome labels a finished job.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRetried   Outcome = "retried"
	OutcomeDropped   Outcome = "dropped"
)

// Observer receives one call per processed job.
type Observer interface {
	JobFinished(name string, outcome Outcome, elapsed time.Duration)
}

// WorkerConfig tunes a Worker.
type WorkerConfig struct {
	Concurrency     int
	PollTimeout     time.Duration
	PromoteInterval time.Duration
	JobTimeout      time.Duration
}

// DefaultWorkerConfig returns a single consumer with one second polling.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:     1,
		PollTimeout:     time.Second,
		PromoteInterval: time.Second,
		JobTimeout:      10 * time.Minute,
	}
}

// Worker consumes jobs from a Queue and dispatches them by name.
type Worker struct {
	queue    *Queue
	cfg      WorkerConfig
	observer Observer

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewWorker creates a worker for q.
func NewWorker(q *Queue, cfg WorkerConfig, observer Observer) *Worker {
	def := DefaultWorkerConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = def.PromoteInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}

	return &Worker{
		queue:    q,
		cfg:      cfg,
		observer: observer,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers fn for jobs named name, replacing any previous handler.
func (w *Worker) Handle(name string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = fn
}

func (w *Worker) handler(name string) (HandlerFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn, ok := w.handlers[name]
	return fn, ok
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Int("concurrency", w.cfg.Concurrency).Msg("queue: worker started")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(w.cfg.PromoteInterval)
		defer ticker.Stop()
		for {
			if _, err := w.queue.PromoteDue(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("queue: failed to promote scheduled jobs")
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				job, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Error().Err(err).Msg("queue: dequeue failed")
					select {
					case <-ctx.Done():
					case <-time.After(w.cfg.PollTimeout):
					}
					continue
				}
				if job != nil {
					w.Process(ctx, job)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	log.Info().Msg("queue: worker stopped")
	return err
}

// Process runs a single job through its handler and applies the retry policy.
func (w *Worker) Process(ctx context.Context, job *Job) Outcome {
	start := time.Now()
	logger := log.With().Str("job", job.Name).Str("id", job.ID).Int("attempt", job.Attempt).Logger()

	err := w.invoke(ctx, job)

	outcome := OutcomeSucceeded
	if err != nil {
		retried, delay, rerr := w.queue.retryLater(context.WithoutCancel(ctx), job)
		switch {
		case rerr != nil:
			logger.Error().Err(err).AnErr("retryErr", rerr).Msg("queue: job failed and could not be rescheduled")
			outcome = OutcomeDropped
		case retried:
			logger.Warn().Err(err).Dur("retryIn", delay).Msg("queue: job failed, retrying")
			outcome = OutcomeRetried
		default:
			logger.Error().Err(err).Msg("queue: job failed, dropping")
			outcome = OutcomeDropped
		}
	} else {
		logger.Debug().Dur("elapsed", time.Since(start)).Msg("queue: job done")
	}

	if w.observer != nil {
		w.observer.JobFinished(job.Name, outcome, time.Since(start))
	}
	return outcome
}

func (w *Worker) invoke(ctx context.Context, job *Job) (err error) {
	fn, ok := w.handler(job.Name)
	if !ok {
		return errors.Errorf("no handler registered for %q", job.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", job.Name).Bytes("stack", debug.Stack()).Msg("queue: handler panicked")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	return fn(jobCtx, job)
}
