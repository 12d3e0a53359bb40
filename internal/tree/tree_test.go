// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	root := Build([]Entry{
		{Segments: []string{"ActionPack", "Film A.mkv"}, ItemKey: "/library/parts/1"},
		{Segments: []string{"ActionPack", "Film B.mkv"}, ItemKey: "/library/parts/2"},
		{Segments: []string{"Drama", "Film C", "Film C.mkv"}, ItemKey: "/library/parts/3"},
	})

	assert.Equal(t, []string{"ActionPack", "Drama"}, root.Names())

	n, ok := root.Lookup("ActionPack", "Film A.mkv")
	require.True(t, ok)
	assert.Equal(t, Leaf{ItemKey: "/library/parts/1"}, n)

	n, ok = root.Lookup("Drama", "Film C")
	require.True(t, ok)
	dir, isDir := n.(*Directory)
	require.True(t, isDir)
	assert.Equal(t, []string{"Film C.mkv"}, dir.Names())

	_, ok = root.Lookup("ActionPack", "Film A.mkv", "deeper")
	assert.False(t, ok)

	dirs, leaves := root.Count()
	assert.Equal(t, 3, dirs)
	assert.Equal(t, 3, leaves)
}

func TestInsertDirectoryWins(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	require.True(t, root.Insert([]string{"Movie"}, "1"))
	require.True(t, root.Insert([]string{"Movie", "file.mkv"}, "2"))
	assert.False(t, root.Insert([]string{"Movie"}, "3"))
	assert.False(t, root.Insert(nil, "4"))

	n, ok := root.Lookup("Movie", "file.mkv")
	require.True(t, ok)
	assert.Equal(t, Leaf{ItemKey: "2"}, n)
}

func TestInsertLaterLeafOverridesLeaf(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	root.Insert([]string{"a.mkv"}, "1")
	root.Insert([]string{"a.mkv"}, "2")

	n, _ := root.Lookup("a.mkv")
	assert.Equal(t, Leaf{ItemKey: "2"}, n)
}

func TestWalkOrder(t *testing.T) {
	t.Parallel()

	root := Build([]Entry{
		{Segments: []string{"b", "2.mkv"}, ItemKey: "k2"},
		{Segments: []string{"a", "1.mkv"}, ItemKey: "k1"},
		{Segments: []string{"a", "sub", "0.mkv"}, ItemKey: "k0"},
	})

	var visited []string
	root.Walk(func(path string, _ Node) {
		visited = append(visited, path)
	})

	assert.Equal(t, []string{
		"a",
		"a/1.mkv",
		"a/sub",
		"a/sub/0.mkv",
		"b",
		"b/2.mkv",
	}, visited)

	dirs, leaves := root.Count()
	assert.Equal(t, 3, dirs)
	assert.Equal(t, 3, leaves)
}
