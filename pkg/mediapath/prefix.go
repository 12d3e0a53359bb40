// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mediapath

import (
	"sort"
	"strings"
)

// DefaultPrefixThreshold is the share of paths a prefix must exceed to count as common.
const DefaultPrefixThreshold = 0.25

// CommonPrefixes returns the ancestor directories shared by more than
// DefaultPrefixThreshold of paths, deepest first.
func CommonPrefixes(paths []string) []string {
	return CommonPrefixesWithThreshold(paths, DefaultPrefixThreshold)
}

// CommonPrefixesWithThreshold counts every ancestor prefix of every path,
// ignoring the file name and its parent directory, and keeps the prefixes
// whose coverage is strictly greater than threshold. The result is ordered by
// segment depth descending so that the most specific prefix is tried first.
func CommonPrefixesWithThreshold(paths []string, threshold float64) []string {
	if len(paths) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, p := range paths {
		folders := strings.Split(p, "/")
		if len(folders) <= 2 {
			continue
		}
		folders = folders[:len(folders)-2]

		for n := len(folders); n > 0; n-- {
			counts[strings.Join(folders[:n], "/")]++
		}
	}

	total := float64(len(paths))
	prefixes := make([]string, 0, len(counts))
	for prefix, count := range counts {
		if prefix == "" {
			continue
		}
		if float64(count)/total > threshold {
			prefixes = append(prefixes, prefix)
		}
	}

	sort.Slice(prefixes, func(i, j int) bool {
		di, dj := depth(prefixes[i]), depth(prefixes[j])
		if di != dj {
			return di > dj
		}
		return prefixes[i] < prefixes[j]
	})

	return prefixes
}

// StripPrefix removes the first prefix (in the given order) that p lives
// under. Pass the output of CommonPrefixes so the deepest match wins.
func StripPrefix(p string, prefixes []string) string {
	for _, prefix := range prefixes {
		if rest, ok := strings.CutPrefix(p, prefix+"/"); ok {
			return strings.TrimLeft(rest, "/")
		}
	}
	return p
}

func depth(p string) int {
	return strings.Count(p, "/") + 1
}
