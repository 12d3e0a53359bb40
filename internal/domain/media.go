// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "fmt"

// MediaType names one of the two published roots.
type MediaType string

const (
	MediaMovies MediaType = "movies"
	MediaShows  MediaType = "shows"
)

// MediaTypes lists every published root.
var MediaTypes = []MediaType{MediaMovies, MediaShows}

// ParseMediaType accepts "movies"/"shows" and the singular library types "movie"/"show".
func ParseMediaType(s string) (MediaType, error) {
	switch s {
	case "movies", "movie":
		return MediaMovies, nil
	case "shows", "show":
		return MediaShows, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// Server is a remote media server resolved during discovery. Node is the
// short identifier used to partition cache keys and jobs.
type Server struct {
	Node        string `json:"node"`
	URI         string `json:"uri"`
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	AccessToken string `json:"token"`
	Owned       bool   `json:"owned"`
}
