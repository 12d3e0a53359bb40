// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"strings"

	"github.com/autobrr/plexreshare/internal/domain"
)

const (
	// ServersKey holds the JSON encoded list of discovered servers.
	ServersKey = "pr:servers"

	// ServersClaimKey is held by the worker currently running discovery.
	ServersClaimKey = "pr:servers:claim"

	// FilesPrefix prefixes every node of the published tree.
	FilesPrefix = "pr:files:"
)

// Node connection fields written by discovery.
const (
	NodeFieldRefresh = "refresh"
	NodeFieldIP      = "ip"
	NodeFieldPort    = "port"
	NodeFieldToken   = "token"
	NodeFieldURI     = "uri"
)

// NodeKey returns pr:node:{node}:{field}.
func NodeKey(node, field string) string {
	return "pr:node:" + node + ":" + field
}

// MediaHashKey returns the hash of item key -> cleaned path for one server and media type.
func MediaHashKey(mediaType domain.MediaType, node string) string {
	return "pr:" + string(mediaType) + ":" + node
}

// FilesKey returns the published tree key for the given path segments.
func FilesKey(segments ...string) string {
	return FilesPrefix + strings.Join(segments, "/")
}

// RootMarker is a permanent member of both root sets so a root never
// disappears when its last node is retracted. Listings skip it.
const RootMarker = "."

// RootKey returns the key of one of the two fixed roots.
func RootKey(mediaType domain.MediaType) string {
	return FilesKey(string(mediaType))
}
