// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import "strings"

// Resource is one entry of the plex.tv resources listing.
type Resource struct {
	Name             string       `json:"name"`
	Provides         string       `json:"provides"`
	ClientIdentifier string       `json:"clientIdentifier"`
	AccessToken      string       `json:"accessToken"`
	Owned            bool         `json:"owned"`
	Connections      []Connection `json:"connections"`
}

// IsServer reports whether the resource provides a media server.
func (r Resource) IsServer() bool {
	for _, p := range strings.Split(r.Provides, ",") {
		if strings.TrimSpace(p) == "server" {
			return true
		}
	}
	return false
}

type Connection struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	URI      string `json:"uri"`
	Local    bool   `json:"local"`
	Relay    bool   `json:"relay"`
	IPv6     bool   `json:"IPv6"`
}

// Public reports whether the connection is reachable from outside the
// server's network without the plex relay.
func (c Connection) Public() bool {
	return !c.Relay && !c.Local && !c.IPv6
}

type containerResponse struct {
	MediaContainer MediaContainer `json:"MediaContainer"`
}

// MediaContainer is the envelope of every media server listing.
type MediaContainer struct {
	Size      int         `json:"size"`
	Offset    int         `json:"offset"`
	TotalSize int         `json:"totalSize"`
	Metadata  []Metadata  `json:"Metadata"`
	Directory []Directory `json:"Directory"`
}

// HasMore reports whether another page follows this one.
func (c *MediaContainer) HasMore() bool {
	return c.Offset+c.Size < c.TotalSize
}

// Directory is a library section.
type Directory struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Metadata is a movie, show, season, episode or playlist.
type Metadata struct {
	Key   string  `json:"key"`
	Type  string  `json:"type"`
	Title string  `json:"title"`
	Year  int     `json:"year"`
	Index int     `json:"index"`
	Media []Media `json:"Media"`
}

type Media struct {
	VideoResolution string `json:"videoResolution"`
	Container       string `json:"container"`
	Part            []Part `json:"Part"`
}

// Part is a single file backing a media item.
type Part struct {
	Key       string `json:"key"`
	File      string `json:"file"`
	Size      int64  `json:"size"`
	Container string `json:"container"`
}
