// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mediapath cleans media server file paths and finds the structural
// prefixes shared by a catalog so they can be dropped before publishing.
// Paths reported by media servers are always forward-slashed, so everything
// here uses path semantics (not filepath).
package mediapath

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinSegmentLen is the length at or below which a segment is dropped.
const DefaultMinSegmentLen = 2

var (
	// "Name [tag]" or "Name [tag].ext"
	trailingTag = regexp.MustCompile(`^(.+?)\s*\[[^\]]*\]\s*(\.[A-Za-z0-9]{2,4})?$`)
	// "[tag]Name"
	leadingTag = regexp.MustCompile(`^\[[^\]]*?\](.*)$`)
)

// Cleaner normalizes raw file paths. The zero value uses DefaultMinSegmentLen.
type Cleaner struct {
	MinSegmentLen int
}

// Clean normalizes p with the default minimum segment length.
func Clean(p string) string {
	return Cleaner{}.Clean(p)
}

// Clean splits p on "/", drops short segments, strips bracketed annotations
// from both ends of every segment and joins the remainder back together.
// The result is relative and never errors; it may be empty.
func (c Cleaner) Clean(p string) string {
	minLen := c.MinSegmentLen
	if minLen <= 0 {
		minLen = DefaultMinSegmentLen
	}

	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if utf8.RuneCountInString(seg) <= minLen {
			continue
		}
		seg = cleanSegment(seg)
		// stripping can shorten a segment below the minimum; drop it so a
		// second pass sees exactly what the first one produced
		if utf8.RuneCountInString(seg) <= minLen {
			continue
		}
		out = append(out, seg)
	}

	return strings.Join(out, "/")
}

// cleanSegment strips annotations until the segment stops changing.
func cleanSegment(seg string) string {
	for {
		next := seg
		if m := trailingTag.FindStringSubmatch(next); m != nil {
			next = strings.TrimSpace(m[1]) + m[2]
		}
		if m := leadingTag.FindStringSubmatch(next); m != nil {
			next = m[1]
		}
		next = strings.TrimSpace(next)
		if next == seg {
			return seg
		}
		seg = next
	}
}

// Segments splits a cleaned path into its non-empty segments.
func Segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
