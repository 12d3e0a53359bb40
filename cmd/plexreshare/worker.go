// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/plexreshare/internal/buildinfo"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/ignorestore"
	"github.com/autobrr/plexreshare/internal/metrics"
	"github.com/autobrr/plexreshare/internal/plex"
	"github.com/autobrr/plexreshare/internal/queue"
	"github.com/autobrr/plexreshare/internal/services/reshare"
)

const shutdownTimeout = 10 * time.Second

func RunWorkerCommand(configPath *string) *cobra.Command {
	var skipKickoff bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run queue workers, the discovery scheduler and the metrics server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return runWorker(ctx, a, !skipKickoff)
		},
	}

	cmd.Flags().BoolVar(&skipKickoff, "no-kickoff", false, "Do not enqueue the discovery job on start")

	return cmd
}

func runWorker(ctx context.Context, a *app, kickoff bool) error {
	cfg := a.cfg.Config

	log.Info().
		Str("version", buildinfo.Version).
		Str("userAgent", buildinfo.UserAgent).
		Str("redis", cfg.RedisAddr()).
		Msg("plexreshare: starting worker")

	ignores, err := ignorestore.Open(a.cfg.GetIgnoreStorePath())
	if err != nil {
		return err
	}
	defer ignores.Close()

	var (
		recorder reshare.Recorder
		observer queue.Observer
		server   *metrics.MetricsServer
	)
	if cfg.MetricsEnabled {
		manager := metrics.NewManager(a.queue)
		recorder = manager.Pipeline
		observer = manager.Pipeline
		server = metrics.NewMetricsServer(manager, cfg.MetricsHost, cfg.MetricsPort, cfg.MetricsBasicAuthUsers)
	}

	client := plex.NewClient(plex.Config{
		Token:             cfg.PlexToken,
		ClientIdentifier:  plex.ClientIdentifier("plexreshare", cfg.DataDir),
		Timeout:           domain.Seconds(cfg.PlexTimeout),
		RequestsPerSecond: cfg.PlexRequestsPerSec,
	})

	svc, err := reshare.NewService(reshare.ConfigFromDomain(cfg), a.store, client, a.queue, ignores, recorder)
	if err != nil {
		return errors.Wrap(err, "create reshare service")
	}

	workerCfg := queue.DefaultWorkerConfig()
	workerCfg.Concurrency = cfg.WorkerConcurrency
	worker := queue.NewWorker(a.queue, workerCfg, observer)
	svc.Register(worker)

	if kickoff {
		if err := reshare.Kickoff(ctx, a.queue); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(ctx)
	})

	if server != nil {
		g.Go(func() error {
			return server.ListenAndServe()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info().Msg("plexreshare: worker stopped")
	return err
}
