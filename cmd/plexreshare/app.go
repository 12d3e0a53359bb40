// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/buildinfo"
	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/config"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/logger"
	"github.com/autobrr/plexreshare/internal/queue"
)

const redisPingTimeout = 5 * time.Second

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg    *config.AppConfig
	redis  *redis.Client
	store  *cache.RedisStore
	queue  *queue.Queue
	logger io.Closer
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	cfg.Config.Version = buildinfo.Version

	closer, err := logger.Setup(cfg.Config)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("config", cfg.String()).Msg("plexreshare: config loaded")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Config.RedisAddr(),
		DB:       cfg.Config.RedisDB,
		Password: cfg.Config.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		_ = closer.Close()
		return nil, fmt.Errorf("ping redis at %s: %w: %w", cfg.Config.RedisAddr(), domain.ErrCacheUnavailable, err)
	}

	return &app{
		cfg:    cfg,
		redis:  client,
		store:  cache.NewRedisStore(client),
		queue:  queue.New(client, queue.Settings{}),
		logger: closer,
	}, nil
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		log.Warn().Err(err).Msg("plexreshare: failed to close redis client")
	}
	_ = a.logger.Close()
}
