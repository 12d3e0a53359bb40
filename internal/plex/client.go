// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package plex is a minimal client for the plex.tv resources API and the
// media server library endpoints the crawler walks.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/autobrr/plexreshare/internal/domain"
)

const (
	DefaultResourcesURL = "https://clients.plex.tv/api/v2/resources"
	DefaultTimeout      = 15 * time.Second
	PlatformVersion     = "16.6"
	browserUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15" +
		" (KHTML, like Gecko) Version/16.6 Safari/605.1.15"
	resourcesLimiterKey = "plex.tv"
	maxErrorBody        = 512
)

// sharedTransport enables connection pooling across clients.
var sharedTransport = func() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 10
	t.IdleConnTimeout = 90 * time.Second
	t.ForceAttemptHTTP2 = true
	return t
}()

type Config struct {
	// Token authenticates against plex.tv; media servers use their own access token.
	Token            string
	ClientIdentifier string
	Timeout          time.Duration
	// RequestsPerSecond paces requests per media server. Zero disables pacing.
	RequestsPerSecond float64
	ResourcesURL      string
	// Scheme used to reach media servers.
	Scheme   string
	Resolver Resolver
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	resolver   *hostResolver

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ResourcesURL == "" {
		cfg.ResourcesURL = DefaultResourcesURL
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: sharedTransport,
		},
		resolver: newHostResolver(cfg.Resolver),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *Client) limiter(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[key]
	if !ok {
		limit := rate.Inf
		if c.cfg.RequestsPerSecond > 0 {
			limit = rate.Limit(c.cfg.RequestsPerSecond)
		}
		l = rate.NewLimiter(limit, 1)
		c.limiters[key] = l
	}
	return l
}

func (c *Client) serverURL(server domain.Server, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.cfg.Scheme + "://" + server.URI + path
}

// getJSON performs a paced GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, limiterKey, endpoint, token string, params url.Values, out any) error {
	if err := c.limiter(limiterKey).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	reqURL := endpoint
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		reqURL = endpoint + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return upstreamErr(endpoint, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("X-Plex-Platform-Version", PlatformVersion)
	if c.cfg.ClientIdentifier != "" {
		req.Header.Set("X-Plex-Client-Identifier", c.cfg.ClientIdentifier)
	}
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstreamErr(endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return upstreamErr(endpoint, resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return upstreamErr(endpoint, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	log.Trace().Str("endpoint", domain.RedactURL(reqURL)).Dur("elapsed", time.Since(start)).Msg("plex: request done")
	return nil
}

func (c *Client) container(ctx context.Context, server domain.Server, path string, params url.Values) (*MediaContainer, error) {
	var resp containerResponse
	if err := c.getJSON(ctx, server.Node, c.serverURL(server, path), server.AccessToken, params, &resp); err != nil {
		return nil, err
	}
	return &resp.MediaContainer, nil
}

func pageParams(offset, size int) url.Values {
	params := url.Values{}
	params.Set("X-Plex-Container-Start", strconv.Itoa(offset))
	params.Set("X-Plex-Container-Size", strconv.Itoa(size))
	return params
}

// Resources lists every resource shared with the configured account.
func (c *Client) Resources(ctx context.Context) ([]Resource, error) {
	params := url.Values{}
	params.Set("includeHttps", "1")
	params.Set("includeRelay", "0")
	params.Set("includeIPv6", "0")

	var resources []Resource
	if err := c.getJSON(ctx, resourcesLimiterKey, c.cfg.ResourcesURL, c.cfg.Token, params, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// Sections lists the library sections of server.
func (c *Client) Sections(ctx context.Context, server domain.Server) ([]Directory, error) {
	mc, err := c.container(ctx, server, "/library/sections", nil)
	if err != nil {
		return nil, err
	}
	return mc.Directory, nil
}

// LibraryPage fetches one page of the items in a library section.
func (c *Client) LibraryPage(ctx context.Context, server domain.Server, sectionKey string, offset, size int) (*MediaContainer, error) {
	path := "/library/sections/" + url.PathEscape(sectionKey) + "/all"
	return c.container(ctx, server, path, pageParams(offset, size))
}

// Children fetches one page below a metadata key: the seasons of a show or
// the episodes of a season.
func (c *Client) Children(ctx context.Context, server domain.Server, key string, offset, size int) (*MediaContainer, error) {
	params := pageParams(offset, size)
	params.Set("excludeAllLeaves", "1")
	params.Set("includeUserState", "0")
	return c.container(ctx, server, key, params)
}

// Playlists lists the video playlists of server.
func (c *Client) Playlists(ctx context.Context, server domain.Server) ([]Metadata, error) {
	params := url.Values{}
	params.Set("playlistType", "video")
	params.Set("includeCollections", "0")
	params.Set("includeExternalMedia", "1")
	params.Set("includeAdvanced", "1")
	params.Set("includeMeta", "1")

	mc, err := c.container(ctx, server, "/playlists", params)
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// PlaylistItems fetches one page of a playlist, key being the playlist's items key.
func (c *Client) PlaylistItems(ctx context.Context, server domain.Server, key string, offset, size int) (*MediaContainer, error) {
	return c.container(ctx, server, key, pageParams(offset, size))
}
