// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reshare

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/cache"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/tree"
	"github.com/autobrr/plexreshare/pkg/mediapath"
)

// ReconcileResult summarizes one reconciliation.
type ReconcileResult struct {
	MediaType   domain.MediaType
	Node        string
	Items       int
	Capped      int
	Ignored     int
	Collisions  int
	Leaves      int
	Directories int
	Deleted     int
}

type storedItem struct {
	key   string
	value string
	path  string
	hint  string
}

// Reconcile rebuilds the published tree of one node from its hash and
// retracts every key the new tree no longer contains.
func (s *Service) Reconcile(ctx context.Context, mediaType domain.MediaType, node string) (*ReconcileResult, error) {
	hashKey := cache.MediaHashKey(mediaType, node)
	fields, err := s.store.HGetAll(ctx, hashKey)
	if err != nil {
		return nil, err
	}

	ignored, err := s.ignoreSet(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{MediaType: mediaType, Node: node, Items: len(fields)}
	items := splitItems(mediaType, fields)

	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.path
	}
	prefixes := mediapath.CommonPrefixesWithThreshold(paths, s.cfg.PrefixThreshold)

	if s.cfg.MaxItems != nil {
		limit, bounded, err := s.cfg.MaxItems(s.now())
		if err != nil {
			return nil, err
		}
		if bounded && len(items) > limit {
			result.Capped = len(items) - limit
			items = items[:limit]
		}
	}

	entries := make([]tree.Entry, 0, len(items))
	for _, it := range items {
		segments := mediapath.Segments(mediapath.StripPrefix(it.path, prefixes))
		if mediaType == domain.MediaMovies && len(segments) == 1 && it.hint != "" {
			segments = []string{strings.ReplaceAll(it.hint, "/", "-"), segments[0]}
		}
		if len(segments) == 0 {
			continue
		}
		if _, skip := ignored[node+"/"+strings.Join(segments, "/")]; skip {
			result.Ignored++
			continue
		}
		entries = append(entries, tree.Entry{Segments: segments, ItemKey: it.key})
	}

	nodeTree := tree.NewDirectory()
	for _, e := range entries {
		if !nodeTree.Insert(e.Segments, e.ItemKey) {
			result.Collisions++
		}
	}

	nodeKey := cache.FilesKey(string(mediaType), node)
	previous, err := s.store.ScanPrefix(ctx, nodeKey+"/")
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{})
	if len(nodeTree.Children) > 0 {
		current[nodeKey] = struct{}{}
	}
	nodeTree.Walk(func(p string, _ tree.Node) {
		current[nodeKey+"/"+p] = struct{}{}
	})

	stale := make([]string, 0)
	for _, key := range previous {
		if _, ok := current[key]; !ok {
			stale = append(stale, key)
		}
	}
	if len(nodeTree.Children) == 0 {
		stale = append(stale, nodeKey)
	}
	result.Deleted = len(stale)
	result.Directories, result.Leaves = nodeTree.Count()
	if len(nodeTree.Children) > 0 {
		result.Directories++
	}

	rootKey := cache.RootKey(mediaType)
	err = s.store.Pipeline(ctx, func(b cache.Batch) {
		b.Delete(stale...)
		b.SAdd(rootKey, cache.RootMarker)

		if len(nodeTree.Children) == 0 {
			b.SRem(rootKey, node)
		} else {
			writeDirectory(b, nodeKey, nodeTree, s.cfg.PathTTL)
			b.SAdd(rootKey, node)
		}

		nodeTree.Walk(func(p string, n tree.Node) {
			key := nodeKey + "/" + p
			switch v := n.(type) {
			case *tree.Directory:
				writeDirectory(b, key, v, s.cfg.PathTTL)
			case tree.Leaf:
				b.Set(key, v.ItemKey, s.cfg.PathTTL)
			}
		})

		if len(fields) > 0 && s.cfg.HashTTL > 0 {
			b.Expire(hashKey, s.cfg.HashTTL)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "publish %s/%s", mediaType, node)
	}

	s.recorder.Reconciled(result)
	log.Info().
		Str("type", string(mediaType)).
		Str("node", node).
		Int("items", result.Items).
		Int("leaves", result.Leaves).
		Int("deleted", result.Deleted).
		Int("ignored", result.Ignored).
		Int("capped", result.Capped).
		Msg("reshare: reconciled")

	return result, nil
}

// writeDirectory replaces the child set of a directory key.
func writeDirectory(b cache.Batch, key string, dir *tree.Directory, ttl time.Duration) {
	b.Delete(key)
	b.SAdd(key, dir.Names()...)
	if ttl > 0 {
		b.Expire(key, ttl)
	}
}

// splitItems separates movie title hints and orders items by stored value,
// ties broken by item key.
func splitItems(mediaType domain.MediaType, fields map[string]string) []storedItem {
	items := make([]storedItem, 0, len(fields))
	for key, value := range fields {
		it := storedItem{key: key, value: value, path: value}
		if mediaType == domain.MediaMovies {
			if p, hint, ok := strings.Cut(value, TitleSeparator); ok {
				it.path, it.hint = p, hint
			}
		}
		items = append(items, it)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].value != items[j].value {
			return items[i].value < items[j].value
		}
		return items[i].key < items[j].key
	})
	return items
}
