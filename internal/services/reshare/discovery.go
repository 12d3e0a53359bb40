// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/queue"
)

const rediscoverSlack = 60 * time.Second

// DiscoverServers returns the shared servers, discovering them from plex.tv
// when the cached list expired, and schedules a crawl for every server whose
// refresh marker lapsed. Concurrent callers in one process share one run.
// It returns nil servers when another worker holds the discovery claim.
func (s *Service) DiscoverServers(ctx context.Context) ([]domain.Server, error) {
	v, err, _ := s.discovery.Do("discover", func() (any, error) {
		return s.discover(ctx)
	})
	if err != nil {
		return nil, err
	}
	servers, _ := v.([]domain.Server)
	return servers, nil
}

func (s *Service) discover(ctx context.Context) ([]domain.Server, error) {
	servers, found, err := s.cachedServers(ctx)
	if err != nil {
		return nil, err
	}

	fresh := false
	if !found {
		// spread workers that all found the list missing
		if err := s.sleep(ctx, s.between(s.cfg.DiscoveryJitterMin, s.cfg.DiscoveryJitterMax)); err != nil {
			return nil, err
		}

		servers, fresh, err = s.refreshServers(ctx)
		if err != nil {
			return nil, err
		}
		if servers == nil {
			return nil, nil
		}
	}

	if fresh && s.cfg.IgnorePlaylist != "" {
		if _, err := s.queue.Enqueue(ctx, JobSeedIgnores, SeedIgnoresPayload{Servers: servers}, queue.AtFront()); err != nil {
			return nil, errors.Wrap(err, "enqueue ignore playlist seeding")
		}
	}

	scheduled := 0
	for _, server := range servers {
		if server.Owned && !s.cfg.IncludeOwned {
			continue
		}

		ok, err := s.claimNode(ctx, server)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if _, err := s.queue.Enqueue(ctx, JobListLibraries, ServerPayload{Server: server}); err != nil {
			return nil, errors.Wrapf(err, "enqueue libraries of %s", server.Node)
		}
		scheduled++
	}

	log.Info().Int("servers", len(servers)).Int("scheduled", scheduled).Bool("fresh", fresh).Msg("reshare: discovery done")
	return servers, nil
}

func (s *Service) cachedServers(ctx context.Context) ([]domain.Server, bool, error) {
	return loadServers(ctx, s.store)
}

func loadServers(ctx context.Context, store cache.Store) ([]domain.Server, bool, error) {
	raw, found, err := store.Get(ctx, cache.ServersKey)
	if err != nil || !found {
		return nil, false, err
	}

	var servers []domain.Server
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		log.Warn().Err(err).Msg("reshare: discarding unreadable server list")
		return nil, false, nil
	}
	return servers, true, nil
}

// refreshServers queries plex.tv while holding the discovery claim. It
// returns nil servers when another worker holds the claim.
func (s *Service) refreshServers(ctx context.Context) ([]domain.Server, bool, error) {
	claimed, err := s.store.SetNX(ctx, cache.ServersClaimKey, s.now().Format(time.RFC3339), s.cfg.ClaimTTL)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		log.Debug().Msg("reshare: discovery running on another worker")
		return nil, false, nil
	}
	defer func() {
		if err := s.store.Delete(context.WithoutCancel(ctx), cache.ServersClaimKey); err != nil {
			log.Warn().Err(err).Msg("reshare: failed to release discovery claim")
		}
	}()

	// the previous claim holder may have finished while we waited
	if servers, found, err := s.cachedServers(ctx); err != nil || found {
		return servers, false, err
	}

	servers, err := s.plex.Servers(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "discover servers")
	}
	if servers == nil {
		servers = []domain.Server{}
	}

	raw, err := json.Marshal(servers)
	if err != nil {
		return nil, false, errors.Wrap(err, "encode server list")
	}

	listTTL := s.cfg.RefreshInterval / 3
	if err := s.store.Set(ctx, cache.ServersKey, string(raw), listTTL); err != nil {
		return nil, false, err
	}

	if _, err := s.queue.Enqueue(ctx, JobDiscover, nil,
		queue.In(listTTL+rediscoverSlack), queue.Unique(DiscoverUniqueKey)); err != nil {
		return nil, false, errors.Wrap(err, "schedule next discovery")
	}

	return servers, true, nil
}

// claimNode takes the node's refresh marker and records its connection
// details. It reports false when the node was refreshed recently.
func (s *Service) claimNode(ctx context.Context, server domain.Server) (bool, error) {
	ttl := s.between(s.cfg.NodeRefreshMin, s.cfg.NodeRefreshMax)
	ok, err := s.store.SetNX(ctx, cache.NodeKey(server.Node, cache.NodeFieldRefresh), s.now().Format(time.RFC3339), ttl)
	if err != nil || !ok {
		return false, err
	}

	err = s.store.Pipeline(ctx, func(b cache.Batch) {
		b.Set(cache.NodeKey(server.Node, cache.NodeFieldIP), server.IP, 0)
		b.Set(cache.NodeKey(server.Node, cache.NodeFieldPort), strconv.Itoa(server.Port), 0)
		b.Set(cache.NodeKey(server.Node, cache.NodeFieldToken), server.AccessToken, 0)
		b.Set(cache.NodeKey(server.Node, cache.NodeFieldURI), server.URI, 0)
	})
	if err != nil {
		return false, err
	}

	log.Debug().Str("node", server.Node).Dur("refreshIn", ttl).Msg("reshare: node due for crawl")
	return true, nil
}
