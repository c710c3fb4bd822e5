// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lazy

import (
	"context"
	"fmt"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/model"
	"github.com/fau-hpc/bgvtrace/internal/reader"
	"github.com/fau-hpc/bgvtrace/internal/scan"
)

// completeGroup re-decodes entry's byte range into a standalone *model.Group,
// using the scan-recorded InitialPool and header fields instead of
// re-parsing the stream from its own beginning.
func (ls *LoadSupport) completeGroup(ctx context.Context, entry *scan.StreamEntry) (any, error) {
	if entry.Type != scan.RecordGroup {
		return nil, fmt.Errorf("lazy: entry at offset %d is a %s, not a group", entry.Start, entry.Type)
	}
	if entry.GroupMeta == nil {
		return nil, fmt.Errorf("lazy: group entry at offset %d has no GroupMeta", entry.Start)
	}

	src, err := ls.openEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	b := model.NewModelBuilder(ls.intern)
	br := reader.New(src, entry.InitialPool.Clone())
	if err := br.ResumeGroup(b, entry.Name, entry.GroupMeta.ShortName, entry.GroupMeta.Method, entry.GroupMeta.BCI); err != nil {
		return nil, fmt.Errorf("lazy: resume group at offset %d: %w", entry.Start, err)
	}
	if len(b.Root.Elements) != 1 {
		return nil, fmt.Errorf("lazy: resume group at offset %d produced %d elements, want 1", entry.Start, len(b.Root.Elements))
	}
	g, ok := b.Root.Elements[0].(*model.Group)
	if !ok {
		return nil, fmt.Errorf("lazy: resume group at offset %d produced a %T, not a group", entry.Start, b.Root.Elements[0])
	}
	return g, nil
}

// completeGraph is completeGroup's counterpart for graph entries.
func (ls *LoadSupport) completeGraph(ctx context.Context, entry *scan.StreamEntry) (any, error) {
	if entry.Type != scan.RecordGraph {
		return nil, fmt.Errorf("lazy: entry at offset %d is a %s, not a graph", entry.Start, entry.Type)
	}

	src, err := ls.openEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	b := model.NewModelBuilder(ls.intern)
	br := reader.New(src, entry.InitialPool.Clone())
	// A lazily reloaded graph is always the root of its own resumed parse,
	// even if it was a nested PROPERTY_SUBGRAPH value in the original
	// stream, so toplevel is always true here.
	if err := br.ResumeGraph(b, entry.Name, true); err != nil {
		return nil, fmt.Errorf("lazy: resume graph at offset %d: %w", entry.Start, err)
	}
	if len(b.Root.Elements) != 1 {
		return nil, fmt.Errorf("lazy: resume graph at offset %d produced %d elements, want 1", entry.Start, len(b.Root.Elements))
	}
	g, ok := b.Root.Elements[0].(*model.InputGraph)
	if !ok {
		return nil, fmt.Errorf("lazy: resume graph at offset %d produced a %T, not a graph", entry.Start, b.Root.Elements[0])
	}
	return g, nil
}

// openEntry opens entry's byte range through ls.content and wraps it in a
// binsrc.Source primed with entry's version and absolute base offset, so
// Ctx.Offset() values seen while resuming still line up with the
// StreamIndex the entry came from.
func (ls *LoadSupport) openEntry(ctx context.Context, entry *scan.StreamEntry) (*binsrc.Source, error) {
	r, err := ls.content.OpenRange(ctx, entry.Start, entry.End)
	if err != nil {
		return nil, err
	}
	src := binsrc.New(r)
	src.SetVersion(entry.MajorVersion, entry.MinorVersion)
	src.SetBaseOffset(entry.Start)
	src.SetCancelFunc(func() bool { return ctx.Err() != nil })
	return src, nil
}
