// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package reader

import "github.com/fau-hpc/bgvtrace/internal/pool"

// Ctx is the narrow slice of BinaryReader state a Builder callback may need:
// the pool in effect at the current position, and the absolute offset. A
// Builder that wants to skip a subtree returns a *SkipRoot built from these.
type Ctx interface {
	Pool() pool.ConstantPool
	Offset() int64
	// Version returns the dump's declared major/minor version, as consumed
	// from its "BIGV" header (or installed via binsrc.Source.SetVersion
	// when resuming a sub-range that carries no header of its own).
	Version() (major, minor byte)
}

// Builder is the event sink a BinaryReader drives as it walks a dump. The
// reader is agnostic to which Builder is attached: ModelBuilder materializes
// everything, ScanningModelBuilder records only byte ranges and metadata,
// and internal/lazy reuses ModelBuilder through ResumeGroup/ResumeGraph to
// materialize one subtree.
//
// StartGroup and StartGraph may return a *SkipRoot (via errors.As) instead
// of a plain error; the reader treats that as "jump to SkipRoot.End,
// installing SkipRoot.Pool" rather than as a failure.
type Builder interface {
	StartGroup(ctx Ctx, name, shortName string, method *pool.Method, bci int32) error
	StartGroupContent(ctx Ctx) error
	EndGroup(ctx Ctx) error

	StartGraph(ctx Ctx, title string, toplevel bool) error
	EndGraph(ctx Ctx, toplevel bool) error
	MarkGraphDuplicate()

	StartNestedProperty(key string)
	Property(key string, value any)

	StartNode(id int32, class pool.NodeClass, hasPredecessor bool)
	EndNode(id int32)
	InputEdge(from, to int32, portIndex int, portName string, list bool)
	SuccessorEdge(from, to int32, portIndex int, portName string, list bool)

	StartBlock(id int32)
	EndBlock(id int32, nodeIDs []int32, edgeTargets []int32)
	MakeBlockEdges()

	// ResetStreamData is called when a second "BIGV" header is encountered
	// mid-stream (file concatenation). It returns the pool the reader should
	// install for the new stream, normally a fresh empty pool.
	ResetStreamData(ctx Ctx) (pool.ConstantPool, error)
}
