// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scan implements ScanningModelBuilder: a reader.Builder that
// discards decoded content and instead records the byte range and pool
// state of every group and graph record, producing a StreamIndex that
// supports later on-demand (lazy) materialization of any indexed subtree.
package scan

import "github.com/fau-hpc/bgvtrace/internal/pool"

// RecordType discriminates the two kinds of record a StreamEntry can index.
type RecordType int

const (
	RecordGroup RecordType = iota
	RecordGraph
)

func (t RecordType) String() string {
	if t == RecordGraph {
		return "graph"
	}
	return "group"
}

// GraphMetadata is the lightweight, per-graph summary the scanner records
// without retaining the graph's actual nodes/edges/blocks.
type GraphMetadata struct {
	NodeIDs        *Bitset
	ChangedNodeIDs *Bitset
	EdgeCount      int
	IsDuplicate    bool
}

// GroupMetadata retains the header fields a folder record carries besides
// its name, so a Completer can replay BinaryReader.ResumeGroup without
// re-decoding the record's own opening fields from the stream.
type GroupMetadata struct {
	ShortName string
	Method    *pool.Method
	BCI       int32
}

// StreamEntry is a byte range [Start,End) plus the pool states required to
// decode it (InitialPool) or to skip past it without decoding
// (SkipPool). Start and InitialPool are set when the scanner
// encounters the record's beginning; End and SkipPool are set once the
// scanner reaches the record's end.
type StreamEntry struct {
	Type         RecordType
	Name         string // diagnostic: group name or graph title
	MajorVersion byte
	MinorVersion byte

	Start, End  int64
	InitialPool pool.ConstantPool
	SkipPool    pool.ConstantPool

	GraphMeta *GraphMetadata // non-nil only when Type == RecordGraph
	GroupMeta *GroupMetadata // non-nil only when Type == RecordGroup

	Parent   *StreamEntry
	Children []*StreamEntry
}

// Depth returns the nesting depth of e (0 for a document-level top entry).
func (e *StreamEntry) Depth() int {
	d := 0
	for p := e.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}
