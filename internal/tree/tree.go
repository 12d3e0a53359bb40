// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tree builds the nested directory representation of a server's
// catalog from cleaned path segments.
package tree

import (
	"sort"
	"strings"
)

// Node is either a *Directory or a Leaf.
type Node interface {
	isNode()
}

// Directory maps a path segment to its child node.
type Directory struct {
	Children map[string]Node
}

// Leaf is a file; ItemKey identifies the media part on its server.
type Leaf struct {
	ItemKey string
}

func (*Directory) isNode() {}
func (Leaf) isNode()       {}

// Entry is one file to place in the tree.
type Entry struct {
	Segments []string
	ItemKey  string
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{Children: make(map[string]Node)}
}

// Build places every entry into a fresh tree rooted at the returned directory.
// Entries are applied in order; see Insert for collision handling.
func Build(entries []Entry) *Directory {
	root := NewDirectory()
	for _, e := range entries {
		root.Insert(e.Segments, e.ItemKey)
	}
	return root
}

// Insert adds a leaf at segments, creating intermediate directories. When a
// file and a directory claim the same name the directory wins; Insert reports
// false if the leaf was not placed.
func (d *Directory) Insert(segments []string, itemKey string) bool {
	if len(segments) == 0 {
		return false
	}

	dir := d
	for _, seg := range segments[:len(segments)-1] {
		child, ok := dir.Children[seg].(*Directory)
		if !ok {
			child = NewDirectory()
			dir.Children[seg] = child
		}
		dir = child
	}

	name := segments[len(segments)-1]
	if _, isDir := dir.Children[name].(*Directory); isDir {
		return false
	}
	dir.Children[name] = Leaf{ItemKey: itemKey}
	return true
}

// Names returns the child names in sorted order.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.Children))
	for name := range d.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves segments below d.
func (d *Directory) Lookup(segments ...string) (Node, bool) {
	var node Node = d
	for _, seg := range segments {
		dir, ok := node.(*Directory)
		if !ok {
			return nil, false
		}
		node, ok = dir.Children[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// Walk visits every node below d depth-first in sorted order. The path passed
// to fn is the "/"-joined location of the node relative to d.
func (d *Directory) Walk(fn func(path string, n Node)) {
	d.walk("", fn)
}

func (d *Directory) walk(parent string, fn func(string, Node)) {
	for _, name := range d.Names() {
		child := d.Children[name]
		p := name
		if parent != "" {
			p = strings.Join([]string{parent, name}, "/")
		}
		fn(p, child)
		if dir, ok := child.(*Directory); ok {
			dir.walk(p, fn)
		}
	}
}

// Count returns the number of directories and leaves below d.
func (d *Directory) Count() (dirs, leaves int) {
	d.Walk(func(_ string, n Node) {
		switch n.(type) {
		case *Directory:
			dirs++
		case Leaf:
			leaves++
		}
	})
	return dirs, leaves
}
