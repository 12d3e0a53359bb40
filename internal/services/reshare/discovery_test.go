// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/domain"
)

var testServers = []domain.Server{
	{Node: "aaa111", URI: "1-2-3-4.aaa111.plex.direct:32400", IP: "1.2.3.4", Port: 32400, AccessToken: "t1"},
	{Node: "bbb222", URI: "5-6-7-8.bbb222.plex.direct:443", IP: "5.6.7.8", Port: 443, AccessToken: "t2"},
	{Node: "own333", URI: "9-9-9-9.own333.plex.direct:32400", IP: "9.9.9.9", Port: 32400, AccessToken: "t3", Owned: true},
}

func TestDiscoverServersFresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.plex.servers = testServers
	ctx := context.Background()

	servers, err := h.svc.DiscoverServers(ctx)
	require.NoError(t, err)
	assert.Equal(t, testServers, servers)
	assert.Equal(t, 1, h.plex.calls())

	assert.True(t, h.mr.Exists(cache.ServersKey))
	assert.Equal(t, time.Hour, h.mr.TTL(cache.ServersKey))
	assert.False(t, h.mr.Exists(cache.ServersClaimKey), "claim is released")

	next := h.queue.named(JobDiscover)
	require.Len(t, next, 1)
	assert.Equal(t, time.Hour+time.Minute, next[0].Options.Delay)
	assert.Equal(t, DiscoverUniqueKey, next[0].Options.UniqueKey)

	libs := h.queue.named(JobListLibraries)
	require.Len(t, libs, 2, "owned servers are not crawled")
	assert.Equal(t, "aaa111", libs[0].Payload.(ServerPayload).Server.Node)
	assert.Equal(t, "bbb222", libs[1].Payload.(ServerPayload).Server.Node)

	ip, err := h.mr.Get(cache.NodeKey("bbb222", cache.NodeFieldIP))
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", ip)
	port, err := h.mr.Get(cache.NodeKey("bbb222", cache.NodeFieldPort))
	require.NoError(t, err)
	assert.Equal(t, "443", port)
	assert.Equal(t, 6*time.Hour, h.mr.TTL(cache.NodeKey("aaa111", cache.NodeFieldRefresh)))
	assert.False(t, h.mr.Exists(cache.NodeKey("own333", cache.NodeFieldRefresh)))

	assert.Empty(t, h.queue.named(JobSeedIgnores))
}

func TestDiscoverServersUsesCacheAndRefreshMarkers(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.plex.servers = testServers
	ctx := context.Background()

	_, err := h.svc.DiscoverServers(ctx)
	require.NoError(t, err)

	servers, err := h.svc.DiscoverServers(ctx)
	require.NoError(t, err)
	assert.Len(t, servers, 3)
	assert.Equal(t, 1, h.plex.calls(), "cached list is reused")
	assert.Len(t, h.queue.named(JobListLibraries), 2, "refresh markers suppress a second crawl")

	h.mr.Del(cache.NodeKey("aaa111", cache.NodeFieldRefresh))
	_, err = h.svc.DiscoverServers(ctx)
	require.NoError(t, err)
	assert.Len(t, h.queue.named(JobListLibraries), 3)
}

func TestDiscoverServersIncludeOwnedAndIgnorePlaylist(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) {
		c.IncludeOwned = true
		c.IgnorePlaylist = "do not share"
	})
	h.plex.servers = testServers

	_, err := h.svc.DiscoverServers(context.Background())
	require.NoError(t, err)

	assert.Len(t, h.queue.named(JobListLibraries), 3)

	seed := h.queue.named(JobSeedIgnores)
	require.Len(t, seed, 1)
	assert.True(t, seed[0].Options.AtFront)
	assert.Len(t, seed[0].Payload.(SeedIgnoresPayload).Servers, 3)
}

func TestDiscoverServersClaimHeldElsewhere(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.plex.servers = testServers
	require.NoError(t, h.mr.Set(cache.ServersClaimKey, "other"))

	servers, err := h.svc.DiscoverServers(context.Background())
	require.NoError(t, err)
	assert.Nil(t, servers)
	assert.Zero(t, h.plex.calls())
	assert.Empty(t, h.queue.jobs)
}

func TestDiscoverServersUpstreamFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.plex.serversErr = fmt.Errorf("%w: plex.tv unreachable", domain.ErrUpstream)

	_, err := h.svc.DiscoverServers(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
	assert.False(t, h.mr.Exists(cache.ServersClaimKey), "claim is released on failure")
	assert.False(t, h.mr.Exists(cache.ServersKey))
	assert.Empty(t, h.queue.jobs)
}

func TestDiscoverServersConcurrentWorkers(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	api := newFakePlex()
	api.servers = testServers
	api.serversDelay = 20 * time.Millisecond
	q := newFakeQueue()

	const workers = 8
	harnesses := make([]*harness, workers)
	for i := range harnesses {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		harnesses[i] = newHarnessOn(t, mr, cache.NewRedisStore(client), api, q, nil)
	}

	var wg sync.WaitGroup
	for _, h := range harnesses {
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.svc.DiscoverServers(context.Background())
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 1, api.calls(), "discovery proceeds at most once")
	assert.Len(t, q.named(JobListLibraries), 2, "each node is scheduled once")
	assert.Len(t, q.named(JobDiscover), 1)
}
