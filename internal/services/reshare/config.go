// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"time"

	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/pkg/mediapath"
)

// Config controls pacing, lifetimes and filtering of the pipeline.
type Config struct {
	RefreshInterval    time.Duration
	PathTTL            time.Duration
	HashTTL            time.Duration
	DiscoveryJitterMin time.Duration
	DiscoveryJitterMax time.Duration
	ClaimTTL           time.Duration
	NodeRefreshMin     time.Duration
	NodeRefreshMax     time.Duration

	IncludeOwned                bool
	IgnorePlaylist              string
	IgnorePlaylistStripPrefixes []string
	IgnoreCacheTTL              time.Duration

	PageSize         int
	SeasonPageSize   int
	PlaylistPageSize int
	MovieRate        float64
	ShowRate         float64
	EpisodeRate      float64

	MovieReconcileDelayMin time.Duration
	MovieReconcileDelayMax time.Duration
	ShowReconcileDelayMin  time.Duration
	ShowReconcileDelayMax  time.Duration

	Filter FilterConfig

	MinSegmentLen   int
	PrefixThreshold float64
	// MaxItems caps a reconciliation. A nil func or an unbounded result
	// publishes everything; a bounded zero publishes nothing.
	MaxItems func(now time.Time) (limit int, bounded bool, err error)
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:    3 * time.Hour,
		PathTTL:            24 * time.Hour,
		HashTTL:            time.Hour,
		DiscoveryJitterMin: time.Second,
		DiscoveryJitterMax: 60 * time.Second,
		ClaimTTL:           5 * time.Minute,
		NodeRefreshMin:     6 * time.Hour,
		NodeRefreshMax:     24 * time.Hour,

		IgnorePlaylistStripPrefixes: []string{"/media/moviesextra/", "/media/showsextra/"},
		IgnoreCacheTTL:              5 * time.Minute,

		PageSize:         100,
		SeasonPageSize:   100,
		PlaylistPageSize: 120,
		MovieRate:        50,
		ShowRate:         10,
		EpisodeRate:      5,

		MovieReconcileDelayMin: 10 * time.Second,
		MovieReconcileDelayMax: 60 * time.Second,
		ShowReconcileDelayMin:  5 * time.Second,
		ShowReconcileDelayMax:  120 * time.Second,

		Filter: DefaultFilterConfig(),

		MinSegmentLen:   mediapath.DefaultMinSegmentLen,
		PrefixThreshold: mediapath.DefaultPrefixThreshold,
	}
}

// ConfigFromDomain maps the application config onto the pipeline config.
func ConfigFromDomain(cfg *domain.Config) Config {
	c := DefaultConfig()

	setDuration := func(dst *time.Duration, seconds int) {
		if seconds > 0 {
			*dst = domain.Seconds(seconds)
		}
	}
	setDuration(&c.RefreshInterval, cfg.RefreshInterval)
	setDuration(&c.PathTTL, cfg.PathTTL)
	setDuration(&c.HashTTL, cfg.HashTTL)
	setDuration(&c.DiscoveryJitterMax, cfg.DiscoveryJitterMax)

	setRate := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setRate(&c.MovieRate, cfg.MovieRate)
	setRate(&c.ShowRate, cfg.ShowRate)
	setRate(&c.EpisodeRate, cfg.EpisodeRate)

	c.IncludeOwned = cfg.IncludeOwned
	c.IgnorePlaylist = cfg.IgnorePlaylist
	if cfg.IgnorePlaylistStripPrefixes != nil {
		c.IgnorePlaylistStripPrefixes = cfg.IgnorePlaylistStripPrefixes
	}

	f := &c.Filter
	setRate(&f.MovieMinSizeMB, cfg.MovieMinSizeMB)
	setRate(&f.EpisodeMinSizeMB, cfg.EpisodeMinSizeMB)
	f.MinResolution = cfg.MinResolution
	if cfg.IgnoreResolutions != nil {
		f.IgnoreResolutions = cfg.IgnoreResolutions
	}
	if cfg.IgnoreContainers != nil {
		f.IgnoreContainers = cfg.IgnoreContainers
	}
	if cfg.IgnoreMovieTemplates != nil {
		f.MovieTemplates = cfg.IgnoreMovieTemplates
	}
	if cfg.IgnoreEpisodeTemplates != nil {
		f.EpisodeTemplates = cfg.IgnoreEpisodeTemplates
	}
	f.Expr = cfg.FilterExpr

	if cfg.MinSegmentLen > 0 {
		c.MinSegmentLen = cfg.MinSegmentLen
	}
	if cfg.PrefixThreshold > 0 {
		c.PrefixThreshold = cfg.PrefixThreshold
	}
	c.MaxItems = cfg.MaxItems

	return c
}

// rate returns the pagination pace for a library of mediaType.
func (c Config) rate(mediaType domain.MediaType) float64 {
	if mediaType == domain.MediaShows {
		return c.ShowRate
	}
	return c.MovieRate
}

// pageDelay is how long the page at nextOffset waits: nextOffset/rate seconds.
func pageDelay(nextOffset int, rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(nextOffset) / rate * float64(time.Second))
}
