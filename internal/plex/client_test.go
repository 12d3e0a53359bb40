// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/plexreshare/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, domain.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		Token:            "account-token",
		ClientIdentifier: "test-client",
		ResourcesURL:     srv.URL + "/api/v2/resources",
		Scheme:           "http",
	})
	server := domain.Server{
		Node:        "abc123",
		URI:         strings.TrimPrefix(srv.URL, "http://"),
		AccessToken: "server-token",
	}
	return client, server
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":0,"Directory":[]}}`))
	})

	_, err := client.Sections(context.Background(), server)
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Contains(t, got.Get("User-Agent"), "Safari")
	assert.Equal(t, PlatformVersion, got.Get("X-Plex-Platform-Version"))
	assert.Equal(t, "test-client", got.Get("X-Plex-Client-Identifier"))
	assert.Equal(t, "server-token", got.Get("X-Plex-Token"))
}

func TestSections(t *testing.T) {
	t.Parallel()

	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/sections", r.URL.Path)
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":3,"Directory":[
			{"key":"1","type":"movie","title":"Movies"},
			{"key":"2","type":"show","title":"TV"},
			{"key":"3","type":"artist","title":"Music"}]}}`))
	})

	sections, err := client.Sections(context.Background(), server)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, Directory{Key: "2", Type: "show", Title: "TV"}, sections[1])
}

func TestLibraryPage(t *testing.T) {
	t.Parallel()

	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/sections/7/all", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("X-Plex-Container-Start"))
		assert.Equal(t, "100", r.URL.Query().Get("X-Plex-Container-Size"))
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":1,"offset":100,"totalSize":250,"Metadata":[
			{"title":"Film A","year":2020,"Media":[{"videoResolution":"1080","Part":[
				{"key":"/library/parts/1/file.mkv","file":"/media/movies1/Film A.mkv","size":734003200,"container":"mkv"}]}]}]}}`))
	})

	page, err := client.LibraryPage(context.Background(), server, "7", 100, 100)
	require.NoError(t, err)
	assert.True(t, page.HasMore())
	require.Len(t, page.Metadata, 1)

	movie := page.Metadata[0]
	assert.Equal(t, "Film A", movie.Title)
	assert.Equal(t, 2020, movie.Year)
	require.Len(t, movie.Media, 1)
	assert.Equal(t, "1080", movie.Media[0].VideoResolution)
	assert.Equal(t, Part{
		Key:       "/library/parts/1/file.mkv",
		File:      "/media/movies1/Film A.mkv",
		Size:      734003200,
		Container: "mkv",
	}, movie.Media[0].Part[0])
}

func TestChildren(t *testing.T) {
	t.Parallel()

	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/metadata/42/children", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("excludeAllLeaves"))
		assert.Equal(t, "0", r.URL.Query().Get("includeUserState"))
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":2,"offset":0,"totalSize":2,"Metadata":[
			{"key":"/library/metadata/43/children","index":1},
			{"key":"/library/metadata/44/children","index":2}]}}`))
	})

	page, err := client.Children(context.Background(), server, "/library/metadata/42/children", 0, 100)
	require.NoError(t, err)
	assert.False(t, page.HasMore())
	assert.Len(t, page.Metadata, 2)
}

func TestPlaylists(t *testing.T) {
	t.Parallel()

	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/playlists":
			assert.Equal(t, "video", r.URL.Query().Get("playlistType"))
			_, _ = w.Write([]byte(`{"MediaContainer":{"size":1,"Metadata":[{"key":"/playlists/9/items","title":"ignore"}]}}`))
		case "/playlists/9/items":
			_, _ = w.Write([]byte(`{"MediaContainer":{"size":1,"offset":0,"totalSize":1,"Metadata":[
				{"Media":[{"Part":[{"key":"/p/1","file":"/media/moviesextra/Film/Film.mkv"}]}]}]}}`))
		default:
			http.NotFound(w, r)
		}
	})

	playlists, err := client.Playlists(context.Background(), server)
	require.NoError(t, err)
	require.Len(t, playlists, 1)

	items, err := client.PlaylistItems(context.Background(), server, playlists[0].Key, 0, 120)
	require.NoError(t, err)
	require.Len(t, items.Metadata, 1)
	assert.Equal(t, "/media/moviesextra/Film/Film.mkv", items.Metadata[0].Media[0].Part[0].File)
}

func TestUpstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad token", http.StatusUnauthorized)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"MediaContainer":`))
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, server := newTestServer(t, tt.handler)

			_, err := client.Sections(context.Background(), server)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrUpstream))

			var upstream *UpstreamError
			require.True(t, errors.As(err, &upstream))
			assert.Equal(t, tt.status, upstream.StatusCode)
		})
	}
}
