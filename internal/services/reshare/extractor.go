// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/plex"
	"github.com/autobrr/plexreshare/internal/queue"
)

// TitleSeparator splits a stored movie value into its path and title hint.
const TitleSeparator = "###"

// ExtractMovies filters one page of movies, merges the survivors into the
// node's hash and schedules a reconciliation.
func (s *Service) ExtractMovies(ctx context.Context, server domain.Server, page *plex.MediaContainer) error {
	entries := s.collect(domain.MediaMovies, page, func(item plex.Metadata, cleaned string) string {
		return cleaned + TitleSeparator + titleHint(item)
	})

	if err := s.merge(ctx, domain.MediaMovies, server.Node, entries); err != nil {
		return err
	}

	delay := s.between(s.cfg.MovieReconcileDelayMin, s.cfg.MovieReconcileDelayMax)
	return EnqueueReconcile(ctx, s.queue, domain.MediaMovies, server.Node, delay)
}

// ExtractShows fans a page of shows out into one season listing per show.
func (s *Service) ExtractShows(ctx context.Context, server domain.Server, page *plex.MediaContainer) error {
	for i, show := range page.Metadata {
		if show.Key == "" {
			s.recorder.ItemSkipped(domain.MediaShows, SkipPartial)
			continue
		}
		payload := ListSeasonsPayload{Server: server, Show: show, ShowIndex: i}
		if _, err := s.queue.Enqueue(ctx, JobListSeasons, payload, queue.AtFront()); err != nil {
			return fmt.Errorf("enqueue seasons of %q: %w", show.Title, err)
		}
	}
	return nil
}

// ListSeasons schedules the episodes of every season of show, staggered by
// season and show index.
func (s *Service) ListSeasons(ctx context.Context, server domain.Server, show plex.Metadata, showIndex int) error {
	page, err := s.plex.Children(ctx, server, show.Key, 0, s.cfg.SeasonPageSize)
	if err != nil {
		return err
	}

	seasons := page.Metadata
	for i, season := range seasons {
		payload := CrawlEpisodesPayload{
			Server:     server,
			Season:     season,
			Offset:     0,
			LastSeason: i == len(seasons)-1,
		}
		delay := domain.Seconds(i*10 + showIndex)
		if _, err := s.queue.Enqueue(ctx, JobCrawlEpisodes, payload, queue.In(delay)); err != nil {
			return fmt.Errorf("enqueue season %d of %q: %w", season.Index, show.Title, err)
		}
	}
	return nil
}

// CrawlEpisodePage fetches one page of a season, merges the episodes and
// schedules the next page. After the last page of a show's last season it
// schedules a reconciliation of the node's shows.
func (s *Service) CrawlEpisodePage(ctx context.Context, server domain.Server, season plex.Metadata, offset int, lastSeason bool) error {
	page, err := s.plex.Children(ctx, server, season.Key, offset, s.cfg.PageSize)
	if err != nil {
		return err
	}
	s.recorder.PageCrawled(domain.MediaShows)

	entries := s.collect(domain.MediaShows, page, func(_ plex.Metadata, cleaned string) string {
		return cleaned
	})
	if err := s.merge(ctx, domain.MediaShows, server.Node, entries); err != nil {
		return err
	}

	if hasMore(page, offset) {
		next := offset + s.cfg.PageSize
		payload := CrawlEpisodesPayload{Server: server, Season: season, Offset: next, LastSeason: lastSeason}
		if _, err := s.queue.Enqueue(ctx, JobCrawlEpisodes, payload, queue.In(pageDelay(next, s.cfg.EpisodeRate))); err != nil {
			return fmt.Errorf("enqueue episodes page %d: %w", next, err)
		}
		return nil
	}

	if lastSeason {
		delay := s.between(s.cfg.ShowReconcileDelayMin, s.cfg.ShowReconcileDelayMax)
		return EnqueueReconcile(ctx, s.queue, domain.MediaShows, server.Node, delay)
	}
	return nil
}

// collect filters every part on page and returns item key -> stored value.
func (s *Service) collect(mediaType domain.MediaType, page *plex.MediaContainer, value func(plex.Metadata, string) string) map[string]string {
	entries := make(map[string]string)
	for _, item := range page.Metadata {
		for _, media := range item.Media {
			for _, part := range media.Part {
				reason, err := s.filter.Check(mediaType, item, media, part)
				if err != nil {
					if errors.Is(err, domain.ErrPartialData) {
						log.Debug().Err(err).Str("title", item.Title).Msg("reshare: skipping incomplete part")
					} else {
						log.Warn().Err(err).Str("title", item.Title).Msg("reshare: filter failed")
					}
				}
				if reason != "" {
					s.recorder.ItemSkipped(mediaType, reason)
					continue
				}

				cleaned := s.cleaner.Clean(part.File)
				if cleaned == "" {
					s.recorder.ItemSkipped(mediaType, SkipPartial)
					continue
				}
				entries[part.Key] = value(item, cleaned)
			}
		}
	}
	return entries
}

func (s *Service) merge(ctx context.Context, mediaType domain.MediaType, node string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.store.HMerge(ctx, cache.MediaHashKey(mediaType, node), entries, s.cfg.HashTTL); err != nil {
		return err
	}
	s.recorder.ItemsMerged(mediaType, len(entries))
	return nil
}

// titleHint renders "Title (Year)", or just the title when the year is unknown.
func titleHint(item plex.Metadata) string {
	title := strings.TrimSpace(item.Title)
	if item.Year > 0 {
		return fmt.Sprintf("%s (%d)", title, item.Year)
	}
	return title
}
