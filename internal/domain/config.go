// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the format of Config.DateStart.
const DateLayout = "2006-01-02"

// Config represents the application configuration
type Config struct {
	Version       string
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	RedisHost     string `toml:"redisHost" mapstructure:"redisHost"`
	RedisPort     int    `toml:"redisPort" mapstructure:"redisPort"`
	RedisDB       int    `toml:"redisDb" mapstructure:"redisDb"`
	RedisPassword string `toml:"redisPassword" mapstructure:"redisPassword"`

	PlexToken          string  `toml:"plexToken" mapstructure:"plexToken"`
	PlexTimeout        int     `toml:"plexTimeout" mapstructure:"plexTimeout"`
	PlexRequestsPerSec float64 `toml:"plexRequestsPerSec" mapstructure:"plexRequestsPerSec"`
	IncludeOwned       bool    `toml:"includeOwned" mapstructure:"includeOwned"`

	// IgnorePlaylist names a playlist on owned servers whose items are never published.
	IgnorePlaylist              string   `toml:"ignorePlaylist" mapstructure:"ignorePlaylist"`
	IgnorePlaylistStripPrefixes []string `toml:"ignorePlaylistStripPrefixes" mapstructure:"ignorePlaylistStripPrefixes"`

	// Cache lifetimes in seconds.
	RefreshInterval    int `toml:"refreshInterval" mapstructure:"refreshInterval"`
	PathTTL            int `toml:"pathTtl" mapstructure:"pathTtl"`
	HashTTL            int `toml:"hashTtl" mapstructure:"hashTtl"`
	DiscoveryJitterMax int `toml:"discoveryJitterMax" mapstructure:"discoveryJitterMax"`

	MovieMinSizeMB         float64  `toml:"movieMinSizeMb" mapstructure:"movieMinSizeMb"`
	EpisodeMinSizeMB       float64  `toml:"episodeMinSizeMb" mapstructure:"episodeMinSizeMb"`
	MinResolution          int      `toml:"minResolution" mapstructure:"minResolution"`
	IgnoreResolutions      []string `toml:"ignoreResolutions" mapstructure:"ignoreResolutions"`
	IgnoreContainers       []string `toml:"ignoreContainers" mapstructure:"ignoreContainers"`
	IgnoreMovieTemplates   []string `toml:"ignoreMovieTemplates" mapstructure:"ignoreMovieTemplates"`
	IgnoreEpisodeTemplates []string `toml:"ignoreEpisodeTemplates" mapstructure:"ignoreEpisodeTemplates"`
	// FilterExpr is an optional expr-lang expression; items for which it is true are dropped.
	FilterExpr string `toml:"filterExpr" mapstructure:"filterExpr"`

	// Pagination pacing: the next page waits offset/rate seconds.
	MovieRate   float64 `toml:"movieRate" mapstructure:"movieRate"`
	ShowRate    float64 `toml:"showRate" mapstructure:"showRate"`
	EpisodeRate float64 `toml:"episodeRate" mapstructure:"episodeRate"`

	MinSegmentLen   int     `toml:"minSegmentLen" mapstructure:"minSegmentLen"`
	PrefixThreshold float64 `toml:"prefixThreshold" mapstructure:"prefixThreshold"`

	// DateStart and FilesPerDay cap how many items a reconciliation publishes.
	DateStart   string `toml:"dateStart" mapstructure:"dateStart"`
	FilesPerDay int    `toml:"filesPerDay" mapstructure:"filesPerDay"`

	WorkerConcurrency int `toml:"workerConcurrency" mapstructure:"workerConcurrency"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`
}

// RedisAddr returns host:port for the redis connection.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Seconds converts one of the integer second settings to a duration.
func Seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

// MaxItems returns how many items a single reconciliation may publish at now.
// bounded is false when no dateStart is configured.
func (c *Config) MaxItems(now time.Time) (limit int, bounded bool, err error) {
	if strings.TrimSpace(c.DateStart) == "" {
		return 0, false, nil
	}

	start, err := time.ParseInLocation(DateLayout, strings.TrimSpace(c.DateStart), now.Location())
	if err != nil {
		return 0, false, fmt.Errorf("invalid dateStart %q: %w", c.DateStart, err)
	}

	days := int(now.Sub(start).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return max(days*c.FilesPerDay, 0), true, nil
}

// Validate checks required settings and that every template compiles.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.PlexToken) == "" {
		errs = append(errs, errors.New("plexToken is required"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("refreshInterval must be positive"))
	}
	if c.PrefixThreshold < 0 || c.PrefixThreshold >= 1 {
		errs = append(errs, fmt.Errorf("prefixThreshold must be in [0, 1), got %v", c.PrefixThreshold))
	}
	for _, tpl := range append(append([]string{}, c.IgnoreMovieTemplates...), c.IgnoreEpisodeTemplates...) {
		if _, err := regexp.Compile(tpl); err != nil {
			errs = append(errs, fmt.Errorf("invalid ignore template %q: %w", tpl, err))
		}
	}
	if _, _, err := c.MaxItems(time.Now()); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
