// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/plex"
	"github.com/autobrr/plexreshare/internal/queue"
)

// ListLibraries schedules the first page of every movie and show section of server.
func (s *Service) ListLibraries(ctx context.Context, server domain.Server) error {
	sections, err := s.plex.Sections(ctx, server)
	if err != nil {
		return err
	}

	scheduled := 0
	for _, section := range sections {
		if _, err := domain.ParseMediaType(section.Type); err != nil {
			continue
		}
		payload := CrawlLibraryPayload{Server: server, Library: section, Offset: 0}
		if _, err := s.queue.Enqueue(ctx, JobCrawlLibrary, payload); err != nil {
			return errors.Wrapf(err, "enqueue library %s of %s", section.Key, server.Node)
		}
		scheduled++
	}

	log.Debug().Str("node", server.Node).Int("sections", len(sections)).Int("scheduled", scheduled).Msg("reshare: libraries listed")
	return nil
}

// CrawlLibraryPage fetches one page of a library, hands it to the extractor
// and schedules the next page ahead of other work.
func (s *Service) CrawlLibraryPage(ctx context.Context, server domain.Server, library plex.Directory, offset int) error {
	mediaType, err := domain.ParseMediaType(library.Type)
	if err != nil {
		log.Warn().Str("node", server.Node).Str("type", library.Type).Msg("reshare: skipping unsupported library")
		return nil
	}

	page, err := s.plex.LibraryPage(ctx, server, library.Key, offset, s.cfg.PageSize)
	if err != nil {
		return err
	}
	s.recorder.PageCrawled(mediaType)

	job := JobExtractMovies
	if mediaType == domain.MediaShows {
		job = JobExtractShows
	}
	if _, err := s.queue.Enqueue(ctx, job, ExtractPayload{Server: server, Page: *page}); err != nil {
		return errors.Wrapf(err, "enqueue %s", job)
	}

	if hasMore(page, offset) {
		next := offset + s.cfg.PageSize
		payload := CrawlLibraryPayload{Server: server, Library: library, Offset: next}
		delay := pageDelay(next, s.cfg.rate(mediaType))
		if _, err := s.queue.Enqueue(ctx, JobCrawlLibrary, payload, queue.AtFront(), queue.In(delay)); err != nil {
			return errors.Wrapf(err, "enqueue page %d of library %s", next, library.Key)
		}
	}

	log.Debug().Str("node", server.Node).Str("library", library.Title).Int("offset", offset).
		Int("size", page.Size).Int("total", page.TotalSize).Msg("reshare: library page crawled")
	return nil
}

// hasMore trusts the requested offset when the server omits it from the page.
func hasMore(page *plex.MediaContainer, requested int) bool {
	offset := max(page.Offset, requested)
	return offset+page.Size < page.TotalSize
}
