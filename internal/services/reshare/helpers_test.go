// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/plex"
	"github.com/autobrr/plexreshare/internal/queue"
)

type enqueued struct {
	Name    string
	Payload any
	Options queue.Options
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []enqueued
	unique map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{unique: make(map[string]bool)}
}

func (f *fakeQueue) Enqueue(_ context.Context, name string, payload any, opts ...queue.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := queue.NewOptions(opts...)
	if o.UniqueKey != "" {
		if f.unique[o.UniqueKey] {
			return "existing", nil
		}
		f.unique[o.UniqueKey] = true
	}
	f.jobs = append(f.jobs, enqueued{Name: name, Payload: payload, Options: o})
	return fmt.Sprintf("job-%d", len(f.jobs)), nil
}

func (f *fakeQueue) named(name string) []enqueued {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []enqueued
	for _, j := range f.jobs {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out
}

type fakePlex struct {
	mu           sync.Mutex
	servers      []domain.Server
	serversErr   error
	serversDelay time.Duration
	serversCalls int
	sections     []plex.Directory
	pages        map[string]*plex.MediaContainer
	playlists    []plex.Metadata
}

func newFakePlex() *fakePlex {
	return &fakePlex{pages: make(map[string]*plex.MediaContainer)}
}

func pageKey(key string, offset int) string {
	return fmt.Sprintf("%s@%d", key, offset)
}

func (f *fakePlex) setPage(key string, offset int, page *plex.MediaContainer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[pageKey(key, offset)] = page
}

func (f *fakePlex) page(key string, offset int) (*plex.MediaContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[pageKey(key, offset)]
	if !ok {
		return nil, &plex.UpstreamError{Endpoint: key, StatusCode: 404, Err: fmt.Errorf("no page at %d", offset)}
	}
	return page, nil
}

func (f *fakePlex) Servers(context.Context) ([]domain.Server, error) {
	f.mu.Lock()
	f.serversCalls++
	delay := f.serversDelay
	servers, err := f.servers, f.serversErr
	f.mu.Unlock()

	time.Sleep(delay)
	return servers, err
}

func (f *fakePlex) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serversCalls
}

func (f *fakePlex) Sections(context.Context, domain.Server) ([]plex.Directory, error) {
	return f.sections, nil
}

func (f *fakePlex) LibraryPage(_ context.Context, _ domain.Server, sectionKey string, offset, _ int) (*plex.MediaContainer, error) {
	return f.page(sectionKey, offset)
}

func (f *fakePlex) Children(_ context.Context, _ domain.Server, key string, offset, _ int) (*plex.MediaContainer, error) {
	return f.page(key, offset)
}

func (f *fakePlex) Playlists(context.Context, domain.Server) ([]plex.Metadata, error) {
	return f.playlists, nil
}

func (f *fakePlex) PlaylistItems(_ context.Context, _ domain.Server, key string, offset, _ int) (*plex.MediaContainer, error) {
	return f.page(key, offset)
}

type fakeIgnores struct {
	mu    sync.Mutex
	paths map[string]struct{}
	loads int
}

func newFakeIgnores(paths ...string) *fakeIgnores {
	f := &fakeIgnores{paths: make(map[string]struct{})}
	for _, p := range paths {
		f.paths[p] = struct{}{}
	}
	return f
}

func (f *fakeIgnores) Add(_ context.Context, paths []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := 0
	for _, p := range paths {
		if _, ok := f.paths[p]; !ok {
			f.paths[p] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (f *fakeIgnores) All(context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	out := make(map[string]struct{}, len(f.paths))
	for p := range f.paths {
		out[p] = struct{}{}
	}
	return out, nil
}

type harness struct {
	svc     *Service
	plex    *fakePlex
	queue   *fakeQueue
	ignores *fakeIgnores
	store   *cache.RedisStore
	mr      *miniredis.Miniredis
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return newHarnessOn(t, mr, cache.NewRedisStore(client), newFakePlex(), newFakeQueue(), mutate)
}

func newHarnessOn(t *testing.T, mr *miniredis.Miniredis, store *cache.RedisStore, api *fakePlex, q *fakeQueue, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	ignores := newFakeIgnores()
	svc, err := NewService(cfg, store, api, q, ignores, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	svc.between = func(lo, _ time.Duration) time.Duration { return lo }

	return &harness{svc: svc, plex: api, queue: q, ignores: ignores, store: store, mr: mr}
}

// publishedKeys returns every key of the published tree.
func (h *harness) publishedKeys(t *testing.T) []string {
	t.Helper()
	keys, err := h.store.ScanPrefix(context.Background(), cache.FilesPrefix)
	require.NoError(t, err)
	return keys
}

func movie(title string, year int, key, file string) plex.Metadata {
	return plex.Metadata{
		Title: title,
		Year:  year,
		Media: []plex.Media{{
			VideoResolution: "1080",
			Part: []plex.Part{{
				Key:       key,
				File:      file,
				Size:      2_000_000_000,
				Container: "mkv",
			}},
		}},
	}
}

func episode(key, file string) plex.Metadata {
	return plex.Metadata{
		Media: []plex.Media{{
			VideoResolution: "720",
			Part: []plex.Part{{
				Key:       key,
				File:      file,
				Size:      300_000_000,
				Container: "mkv",
			}},
		}},
	}
}
