// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package reshare implements the discovery, crawl and reconcile pipeline
// that republishes shared media libraries as a browsable tree.
package reshare

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/plex"
	"github.com/autobrr/plexreshare/internal/queue"
	"github.com/autobrr/plexreshare/pkg/mediapath"
)

// PlexAPI is the subset of *plex.Client the pipeline uses.
type PlexAPI interface {
	Servers(ctx context.Context) ([]domain.Server, error)
	Sections(ctx context.Context, server domain.Server) ([]plex.Directory, error)
	LibraryPage(ctx context.Context, server domain.Server, sectionKey string, offset, size int) (*plex.MediaContainer, error)
	Children(ctx context.Context, server domain.Server, key string, offset, size int) (*plex.MediaContainer, error)
	Playlists(ctx context.Context, server domain.Server) ([]plex.Metadata, error)
	PlaylistItems(ctx context.Context, server domain.Server, key string, offset, size int) (*plex.MediaContainer, error)
}

// IgnoreStore persists the paths that are never published.
type IgnoreStore interface {
	Add(ctx context.Context, paths []string) (int, error)
	All(ctx context.Context) (map[string]struct{}, error)
}

// Recorder observes pipeline progress.
type Recorder interface {
	PageCrawled(mediaType domain.MediaType)
	ItemsMerged(mediaType domain.MediaType, n int)
	ItemSkipped(mediaType domain.MediaType, reason SkipReason)
	Reconciled(result *ReconcileResult)
}

type nopRecorder struct{}

func (nopRecorder) PageCrawled(domain.MediaType)             {}
func (nopRecorder) ItemsMerged(domain.MediaType, int)        {}
func (nopRecorder) ItemSkipped(domain.MediaType, SkipReason) {}
func (nopRecorder) Reconciled(*ReconcileResult)              {}

const ignoreCacheKey = "ignores"

// Service runs the pipeline steps. Every step is a job handler; successors
// are scheduled through the queue so any worker can continue the work.
type Service struct {
	cfg      Config
	store    cache.Store
	plex     PlexAPI
	queue    queue.Enqueuer
	ignores  IgnoreStore
	filter   *Filter
	cleaner  mediapath.Cleaner
	recorder Recorder

	ignoreCache *ttlcache.Cache[string, map[string]struct{}]
	discovery   singleflight.Group

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	// between returns a uniformly random duration in [lo, hi].
	between func(lo, hi time.Duration) time.Duration
}

// NewService constructs a Service. recorder may be nil.
func NewService(cfg Config, store cache.Store, api PlexAPI, q queue.Enqueuer, ignores IgnoreStore, recorder Recorder) (*Service, error) {
	filter, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.SeasonPageSize <= 0 {
		cfg.SeasonPageSize = def.SeasonPageSize
	}
	if cfg.PlaylistPageSize <= 0 {
		cfg.PlaylistPageSize = def.PlaylistPageSize
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = def.ClaimTTL
	}
	if cfg.IgnoreCacheTTL <= 0 {
		cfg.IgnoreCacheTTL = def.IgnoreCacheTTL
	}

	return &Service{
		cfg:         cfg,
		store:       store,
		plex:        api,
		queue:       q,
		ignores:     ignores,
		filter:      filter,
		cleaner:     mediapath.Cleaner{MinSegmentLen: cfg.MinSegmentLen},
		recorder:    recorder,
		ignoreCache: ttlcache.New(ttlcache.Options[string, map[string]struct{}]{}.SetDefaultTTL(cfg.IgnoreCacheTTL)),
		now:         time.Now,
		sleep:       sleepContext,
		between:     randomBetween,
	}, nil
}

// Register binds every pipeline job to w.
func (s *Service) Register(w *queue.Worker) {
	w.Handle(JobDiscover, func(ctx context.Context, _ *queue.Job) error {
		_, err := s.DiscoverServers(ctx)
		return err
	})
	w.Handle(JobListLibraries, decode(func(ctx context.Context, p ServerPayload) error {
		return s.ListLibraries(ctx, p.Server)
	}))
	w.Handle(JobCrawlLibrary, decode(func(ctx context.Context, p CrawlLibraryPayload) error {
		return s.CrawlLibraryPage(ctx, p.Server, p.Library, p.Offset)
	}))
	w.Handle(JobExtractMovies, decode(func(ctx context.Context, p ExtractPayload) error {
		return s.ExtractMovies(ctx, p.Server, &p.Page)
	}))
	w.Handle(JobExtractShows, decode(func(ctx context.Context, p ExtractPayload) error {
		return s.ExtractShows(ctx, p.Server, &p.Page)
	}))
	w.Handle(JobListSeasons, decode(func(ctx context.Context, p ListSeasonsPayload) error {
		return s.ListSeasons(ctx, p.Server, p.Show, p.ShowIndex)
	}))
	w.Handle(JobCrawlEpisodes, decode(func(ctx context.Context, p CrawlEpisodesPayload) error {
		return s.CrawlEpisodePage(ctx, p.Server, p.Season, p.Offset, p.LastSeason)
	}))
	w.Handle(JobReconcile, decode(func(ctx context.Context, p ReconcilePayload) error {
		_, err := s.Reconcile(ctx, p.MediaType, p.Node)
		return err
	}))
	w.Handle(JobSeedIgnores, decode(func(ctx context.Context, p SeedIgnoresPayload) error {
		_, err := s.SeedIgnores(ctx, p.Servers)
		return err
	}))
}

func decode[T any](fn func(context.Context, T) error) queue.HandlerFunc {
	return func(ctx context.Context, job *queue.Job) error {
		var payload T
		if err := job.Decode(&payload); err != nil {
			return err
		}
		return fn(ctx, payload)
	}
}

// Kickoff enqueues the singleton discovery job.
func Kickoff(ctx context.Context, q queue.Enqueuer) error {
	_, err := q.Enqueue(ctx, JobDiscover, nil, queue.Unique(DiscoverUniqueKey))
	return errors.Wrap(err, "enqueue discovery")
}

// EnqueueReconcile schedules a reconciliation of one node unless one is already waiting.
func EnqueueReconcile(ctx context.Context, q queue.Enqueuer, mediaType domain.MediaType, node string, delay time.Duration) error {
	opts := []queue.Option{queue.Unique(reconcileUniqueKey(mediaType, node))}
	if delay > 0 {
		opts = append(opts, queue.In(delay))
	}
	_, err := q.Enqueue(ctx, JobReconcile, ReconcilePayload{MediaType: mediaType, Node: node}, opts...)
	return errors.Wrapf(err, "enqueue reconcile %s/%s", mediaType, node)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}
