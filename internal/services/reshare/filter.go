// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/plex"
)

// SkipReason names the rule that dropped a media part. Empty means kept.
type SkipReason string

const (
	SkipPartial    SkipReason = "partial"
	SkipResolution SkipReason = "resolution"
	SkipContainer  SkipReason = "container"
	SkipSize       SkipReason = "size"
	SkipTemplate   SkipReason = "template"
	SkipExpr       SkipReason = "expr"
)

type FilterConfig struct {
	MovieMinSizeMB    float64
	EpisodeMinSizeMB  float64
	MinResolution     int
	IgnoreResolutions []string
	IgnoreContainers  []string
	MovieTemplates    []string
	EpisodeTemplates  []string
	// Expr drops every candidate it evaluates to true for.
	Expr string
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MovieMinSizeMB:    500,
		EpisodeMinSizeMB:  80,
		IgnoreResolutions: []string{"sd"},
		IgnoreContainers:  []string{"avi"},
		MovieTemplates:    []string{`.*sample.*`},
		EpisodeTemplates:  []string{`.*anime.*`},
	}
}

// Candidate is a media part under evaluation; it is also the environment
// filter expressions run against.
type Candidate struct {
	Type       string
	Path       string
	File       string
	SizeMB     float64
	Container  string
	Resolution string
	Title      string
	Year       int
}

// Filter decides which media parts get published.
type Filter struct {
	cfg              FilterConfig
	resolutions      map[string]struct{}
	containers       map[string]struct{}
	movieTemplates   []*regexp.Regexp
	episodeTemplates []*regexp.Regexp
	program          *vm.Program
}

func NewFilter(cfg FilterConfig) (*Filter, error) {
	f := &Filter{
		cfg:         cfg,
		resolutions: lowerSet(cfg.IgnoreResolutions),
		containers:  lowerSet(cfg.IgnoreContainers),
	}

	var err error
	if f.movieTemplates, err = compileTemplates(cfg.MovieTemplates); err != nil {
		return nil, err
	}
	if f.episodeTemplates, err = compileTemplates(cfg.EpisodeTemplates); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Expr) != "" {
		f.program, err = expr.Compile(cfg.Expr, expr.Env(Candidate{}), expr.AsBool())
		if err != nil {
			return nil, errors.Wrap(err, "compile filter expression")
		}
	}

	return f, nil
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

// compileTemplates anchors each template at the start and matches case-insensitively.
func compileTemplates(templates []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(templates))
	for _, tpl := range templates {
		re, err := regexp.Compile(`(?i)^(?:` + tpl + `)`)
		if err != nil {
			return nil, errors.Wrapf(err, "compile ignore template %q", tpl)
		}
		out = append(out, re)
	}
	return out, nil
}

// Check evaluates one part of an item. It returns domain.ErrPartialData for
// parts missing their key or file.
func (f *Filter) Check(mediaType domain.MediaType, item plex.Metadata, media plex.Media, part plex.Part) (SkipReason, error) {
	if part.Key == "" || part.File == "" {
		return SkipPartial, fmt.Errorf("%w: part %q file %q", domain.ErrPartialData, part.Key, part.File)
	}

	if !f.resolutionAllowed(media.VideoResolution) {
		return SkipResolution, nil
	}

	container := part.Container
	if container == "" {
		container = media.Container
	}
	if _, ignored := f.containers[strings.ToLower(container)]; container == "" || ignored {
		return SkipContainer, nil
	}

	size := part.Size
	if size <= 0 {
		size = 1
	}
	sizeMB := float64(size) / 1_000_000
	minSize := f.cfg.MovieMinSizeMB
	if mediaType == domain.MediaShows {
		minSize = f.cfg.EpisodeMinSizeMB
	}
	if sizeMB < minSize {
		return SkipSize, nil
	}

	if f.matchesTemplate(mediaType, part.File) {
		return SkipTemplate, nil
	}

	if f.program != nil {
		candidate := Candidate{
			Type:       string(mediaType),
			Path:       part.File,
			File:       path.Base(part.File),
			SizeMB:     sizeMB,
			Container:  container,
			Resolution: media.VideoResolution,
			Title:      item.Title,
			Year:       item.Year,
		}
		out, err := expr.Run(f.program, candidate)
		if err != nil {
			return SkipExpr, errors.Wrap(err, "evaluate filter expression")
		}
		if drop, _ := out.(bool); drop {
			return SkipExpr, nil
		}
	}

	return "", nil
}

func (f *Filter) resolutionAllowed(resolution string) bool {
	res := strings.ToLower(strings.TrimSpace(resolution))
	if res == "" {
		return false
	}
	if _, ignored := f.resolutions[res]; ignored {
		return false
	}
	if f.cfg.MinResolution > 0 {
		if lines, ok := resolutionLines(res); ok && lines < f.cfg.MinResolution {
			return false
		}
	}
	return true
}

// resolutionLines parses "1080", "720p" or "4k" into vertical lines.
func resolutionLines(res string) (int, bool) {
	switch res {
	case "4k":
		return 2160, true
	case "8k":
		return 4320, true
	}
	n, err := strconv.Atoi(strings.TrimSuffix(res, "p"))
	return n, err == nil
}

// matchesTemplate tests movie basenames and lower-cased episode paths.
func (f *Filter) matchesTemplate(mediaType domain.MediaType, file string) bool {
	subject := path.Base(file)
	templates := f.movieTemplates
	if mediaType == domain.MediaShows {
		subject = strings.ToLower(file)
		templates = f.episodeTemplates
	}
	for _, re := range templates {
		if re.MatchString(subject) {
			return true
		}
	}
	return false
}
