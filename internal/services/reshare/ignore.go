// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"context"
	"strings"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/queue"
)

// EnqueueSeedIgnores queues ignore seeding for the cached server list and
// returns how many servers it covers. Nothing is queued when no list is cached.
func EnqueueSeedIgnores(ctx context.Context, store cache.Store, q queue.Enqueuer) (int, error) {
	servers, found, err := loadServers(ctx, store)
	if err != nil {
		return 0, err
	}
	if !found || len(servers) == 0 {
		return 0, nil
	}

	if _, err := q.Enqueue(ctx, JobSeedIgnores, SeedIgnoresPayload{Servers: servers}, queue.AtFront()); err != nil {
		return 0, errors.Wrap(err, "enqueue ignore playlist seeding")
	}
	return len(servers), nil
}

// SeedIgnores reads the ignore playlist of every owned server and adds its
// files to the ignore store. It returns how many paths were new.
func (s *Service) SeedIgnores(ctx context.Context, servers []domain.Server) (int, error) {
	if s.ignores == nil || s.cfg.IgnorePlaylist == "" {
		return 0, nil
	}

	var paths []string
	for _, server := range servers {
		if !server.Owned {
			continue
		}

		found, err := s.playlistFiles(ctx, server)
		if err != nil {
			return 0, err
		}
		paths = append(paths, found...)
	}

	added, err := s.ignores.Add(ctx, paths)
	if err != nil {
		return 0, errors.Wrap(err, "store ignored paths")
	}
	s.ignoreCache.Delete(ignoreCacheKey)

	log.Info().Int("found", len(paths)).Int("added", added).Msg("reshare: ignore playlist seeded")
	return added, nil
}

func (s *Service) playlistFiles(ctx context.Context, server domain.Server) ([]string, error) {
	playlists, err := s.plex.Playlists(ctx, server)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, playlist := range playlists {
		if playlist.Title != s.cfg.IgnorePlaylist {
			continue
		}

		for offset := 0; ; offset += s.cfg.PlaylistPageSize {
			page, err := s.plex.PlaylistItems(ctx, server, playlist.Key, offset, s.cfg.PlaylistPageSize)
			if err != nil {
				return nil, err
			}
			for _, item := range page.Metadata {
				for _, media := range item.Media {
					for _, part := range media.Part {
						if p := s.ignorePath(part.File); p != "" {
							paths = append(paths, p)
						}
					}
				}
			}
			if !hasMore(page, offset) || len(page.Metadata) == 0 {
				break
			}
		}
	}
	return paths, nil
}

// ignorePath turns a playlist file into a node/path entry.
func (s *Service) ignorePath(file string) string {
	for _, prefix := range s.cfg.IgnorePlaylistStripPrefixes {
		if strings.HasPrefix(file, prefix) {
			file = strings.TrimPrefix(file, prefix)
			break
		}
	}
	return strings.Trim(file, "/")
}

// ignoreSet returns the memoized ignore set.
func (s *Service) ignoreSet(ctx context.Context) (map[string]struct{}, error) {
	if s.ignores == nil {
		return nil, nil
	}
	if set, ok := s.ignoreCache.Get(ignoreCacheKey); ok {
		return set, nil
	}

	set, err := s.ignores.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load ignored paths")
	}
	s.ignoreCache.Set(ignoreCacheKey, set, ttlcache.DefaultTTL)
	return set, nil
}
