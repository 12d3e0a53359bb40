// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/plex"
)

// Job names. Every payload below carries the full state needed to resume.
const (
	JobDiscover      = "discover"
	JobListLibraries = "list_libraries"
	JobCrawlLibrary  = "crawl_library"
	JobExtractMovies = "extract_movies"
	JobExtractShows  = "extract_shows"
	JobListSeasons   = "list_seasons"
	JobCrawlEpisodes = "crawl_episodes"
	JobReconcile     = "reconcile"
	JobSeedIgnores   = "seed_ignores"
)

// DiscoverUniqueKey keeps at most one discovery job waiting.
const DiscoverUniqueKey = "discover"

type ServerPayload struct {
	Server domain.Server `json:"server"`
}

type CrawlLibraryPayload struct {
	Server  domain.Server  `json:"server"`
	Library plex.Directory `json:"library"`
	Offset  int            `json:"offset"`
}

type ExtractPayload struct {
	Server domain.Server       `json:"server"`
	Page   plex.MediaContainer `json:"page"`
}

type ListSeasonsPayload struct {
	Server    domain.Server `json:"server"`
	Show      plex.Metadata `json:"show"`
	ShowIndex int           `json:"showIndex"`
}

type CrawlEpisodesPayload struct {
	Server     domain.Server `json:"server"`
	Season     plex.Metadata `json:"season"`
	Offset     int           `json:"offset"`
	LastSeason bool          `json:"lastSeason"`
}

type ReconcilePayload struct {
	MediaType domain.MediaType `json:"mediaType"`
	Node      string           `json:"node"`
}

type SeedIgnoresPayload struct {
	Servers []domain.Server `json:"servers"`
}

func reconcileUniqueKey(mediaType domain.MediaType, node string) string {
	return JobReconcile + ":" + string(mediaType) + ":" + node
}
