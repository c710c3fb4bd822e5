// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scan

// StreamIndex is the result of scanning a dump: every group and graph
// record encountered, at every nesting depth (not only document-level
// ones), indexed by the byte offset its Start-phase decoding was observed
// at. Nesting is preserved via StreamEntry.Parent/Children so a LazyGroup
// or LazyGraph can be built from any entry, top-level or not.
type StreamIndex struct {
	top      []*StreamEntry
	byOffset map[int64]*StreamEntry
}

func newStreamIndex() *StreamIndex {
	return &StreamIndex{byOffset: make(map[int64]*StreamEntry)}
}

// TopLevel returns the document-level entries, in stream order.
func (idx *StreamIndex) TopLevel() []*StreamEntry {
	return idx.top
}

// At returns the entry whose Start offset equals offset, if any.
func (idx *StreamIndex) At(offset int64) (*StreamEntry, bool) {
	e, ok := idx.byOffset[offset]
	return e, ok
}

// Len returns the total number of entries indexed, across every nesting
// depth.
func (idx *StreamIndex) Len() int {
	return len(idx.byOffset)
}

// Walk visits every entry depth-first, in stream order. fn returning false
// stops the walk early, including any unvisited siblings and ancestors.
func (idx *StreamIndex) Walk(fn func(*StreamEntry) bool) {
	var visit func([]*StreamEntry) bool
	visit = func(entries []*StreamEntry) bool {
		for _, e := range entries {
			if !fn(e) {
				return false
			}
			if !visit(e.Children) {
				return false
			}
		}
		return true
	}
	visit(idx.top)
}

func (idx *StreamIndex) link(parent *StreamEntry, e *StreamEntry) {
	if parent == nil {
		idx.top = append(idx.top, e)
	} else {
		e.Parent = parent
		parent.Children = append(parent.Children, e)
	}
	idx.byOffset[e.Start] = e
}
