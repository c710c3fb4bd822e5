// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scan

import (
	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/metrics"
	"github.com/fau-hpc/bgvtrace/internal/pool"
	"github.com/fau-hpc/bgvtrace/internal/reader"
)

// ScanningModelBuilder is a reader.Builder that discards every decoded
// value and instead records, for each group and graph record, the byte
// range it occupies and the constant pool state needed to either resume
// decoding it (InitialPool) or skip past it (SkipPool). It is the cheap
// first pass that makes on-demand (lazy) materialization of an arbitrary
// subtree possible later, without holding the whole dump in memory.
type ScanningModelBuilder struct {
	Index *StreamIndex

	br        *reader.BinaryReader
	stack     []*StreamEntry
	lastGraph map[*StreamEntry]*StreamEntry // parent -> most recently closed graph sibling
}

// NewScanningModelBuilder returns an empty ScanningModelBuilder. Call
// AttachReader with the BinaryReader that will drive it before Parse runs.
func NewScanningModelBuilder() *ScanningModelBuilder {
	return &ScanningModelBuilder{Index: newStreamIndex(), lastGraph: make(map[*StreamEntry]*StreamEntry)}
}

var _ reader.Builder = (*ScanningModelBuilder)(nil)

// AttachReader wires br so the builder can install a forked constant pool
// as the reader's live pool at a record boundary (see forkPool). The Ctx
// passed to Builder callbacks only exposes the current pool, not a way to
// replace it, so the concrete *BinaryReader reference is required.
func (s *ScanningModelBuilder) AttachReader(br *reader.BinaryReader) {
	s.br = br
}

// Scan runs a ScanningModelBuilder over src and returns the resulting
// index. It is the usual entry point; call NewScanningModelBuilder and
// AttachReader directly only when composing the builder into a larger
// parse (e.g. scanning while simultaneously persisting to an indexstore).
func Scan(src *binsrc.Source) (*StreamIndex, error) {
	sb := NewScanningModelBuilder()
	br := reader.New(src, pool.NewStream())
	sb.AttachReader(br)
	if err := br.Parse(sb); err != nil {
		return nil, err
	}
	return sb.Index, nil
}

// forkPool returns the pool holding the data in effect right now, forking
// ctx's current pool first if an overwrite-after-read has left it with a
// preserved snapshot to hand off. When a fork does occur, the returned
// pool is also installed as the reader's live pool, since the object that
// used to be live (ctx.Pool()) has just become the frozen historical
// handle for whatever was stashed against it earlier.
func (s *ScanningModelBuilder) forkPool(ctx reader.Ctx) pool.ConstantPool {
	sp, ok := ctx.Pool().(*pool.StreamPool)
	if !ok {
		// Not a StreamPool (a plain pool.New(), e.g. in a test or a builder
		// composed without copy-on-overwrite support): there is no fork
		// protocol to honor, so an independent snapshot is the best that can
		// be done.
		return ctx.Pool().Clone()
	}
	forked := sp.ForkIfNeeded()
	if forked != sp {
		s.br.ReplaceConstantPool(forked)
	}
	return forked
}

func (s *ScanningModelBuilder) top() *StreamEntry {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *ScanningModelBuilder) currentGraph() *StreamEntry {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].Type == RecordGraph {
			return s.stack[i]
		}
	}
	return nil
}

func (s *ScanningModelBuilder) StartGroup(ctx reader.Ctx, name, shortName string, method *pool.Method, bci int32) error {
	major, minor := ctx.Version()
	e := &StreamEntry{
		Type:         RecordGroup,
		Name:         name,
		MajorVersion: major,
		MinorVersion: minor,
		Start:        ctx.Offset(),
		InitialPool:  s.forkPool(ctx),
		GroupMeta:    &GroupMetadata{ShortName: shortName, Method: method, BCI: bci},
	}
	s.Index.link(s.top(), e)
	s.stack = append(s.stack, e)
	metrics.EntriesScanned.WithLabelValues("group").Inc()
	return nil
}

func (s *ScanningModelBuilder) StartGroupContent(ctx reader.Ctx) error {
	return nil
}

func (s *ScanningModelBuilder) EndGroup(ctx reader.Ctx) error {
	e := s.top()
	s.stack = s.stack[:len(s.stack)-1]
	e.End = ctx.Offset()
	e.SkipPool = s.forkPool(ctx)
	return nil
}

func (s *ScanningModelBuilder) StartGraph(ctx reader.Ctx, title string, toplevel bool) error {
	major, minor := ctx.Version()
	e := &StreamEntry{
		Type:         RecordGraph,
		Name:         title,
		MajorVersion: major,
		MinorVersion: minor,
		Start:        ctx.Offset(),
		InitialPool:  s.forkPool(ctx),
		GraphMeta:    &GraphMetadata{NodeIDs: NewBitset()},
	}
	s.Index.link(s.top(), e)
	s.stack = append(s.stack, e)
	metrics.EntriesScanned.WithLabelValues("graph").Inc()
	return nil
}

func (s *ScanningModelBuilder) EndGraph(ctx reader.Ctx, toplevel bool) error {
	e := s.top()
	s.stack = s.stack[:len(s.stack)-1]
	e.End = ctx.Offset()
	e.SkipPool = s.forkPool(ctx)

	parent := e.Parent
	if prev, ok := s.lastGraph[parent]; ok {
		e.GraphMeta.ChangedNodeIDs = SymmetricDiff(e.GraphMeta.NodeIDs, prev.GraphMeta.NodeIDs)
	} else {
		e.GraphMeta.ChangedNodeIDs = e.GraphMeta.NodeIDs
	}
	s.lastGraph[parent] = e
	return nil
}

func (s *ScanningModelBuilder) MarkGraphDuplicate() {
	if e := s.top(); e != nil && e.GraphMeta != nil {
		e.GraphMeta.IsDuplicate = true
		metrics.DuplicateGraphs.Inc()
	}
}

func (s *ScanningModelBuilder) StartNestedProperty(key string) {}

func (s *ScanningModelBuilder) Property(key string, value any) {}

func (s *ScanningModelBuilder) StartNode(id int32, class pool.NodeClass, hasPredecessor bool) {
	if g := s.currentGraph(); g != nil {
		g.GraphMeta.NodeIDs.Set(id)
	}
}

func (s *ScanningModelBuilder) EndNode(id int32) {}

func (s *ScanningModelBuilder) InputEdge(from, to int32, portIndex int, portName string, list bool) {
	if g := s.currentGraph(); g != nil {
		g.GraphMeta.EdgeCount++
	}
}

func (s *ScanningModelBuilder) SuccessorEdge(from, to int32, portIndex int, portName string, list bool) {
	if g := s.currentGraph(); g != nil {
		g.GraphMeta.EdgeCount++
	}
}

func (s *ScanningModelBuilder) StartBlock(id int32) {}

func (s *ScanningModelBuilder) EndBlock(id int32, nodeIDs []int32, edgeTargets []int32) {}

func (s *ScanningModelBuilder) MakeBlockEdges() {}

func (s *ScanningModelBuilder) ResetStreamData(ctx reader.Ctx) (pool.ConstantPool, error) {
	return pool.NewStream(), nil
}
