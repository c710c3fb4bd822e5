// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/config"
	"github.com/fau-hpc/bgvtrace/internal/content"
	"github.com/fau-hpc/bgvtrace/internal/content/filecontent"
	"github.com/fau-hpc/bgvtrace/internal/content/s3content"
	"github.com/fau-hpc/bgvtrace/internal/lazy"
	"github.com/fau-hpc/bgvtrace/internal/notify"
	"github.com/fau-hpc/bgvtrace/internal/scan"
)

// runMaterialize re-scans -dump to rebuild its in-memory StreamIndex (the
// pool snapshots a Completer needs to resume decoding are not persisted by
// internal/indexstore -- only diagnostic metadata is), locates the entry
// starting at -offset, and materializes it through internal/lazy exactly
// as a UI-side on-demand request would.
func runMaterialize(args []string) error {
	fs := flag.NewFlagSet("materialize", flag.ExitOnError)
	dumpPath := fs.String("dump", "", "Path to the binary dump file (required)")
	offset := fs.Int64("offset", -1, "Byte offset of the group or graph record to materialize (required)")
	fs.Parse(args)

	if *dumpPath == "" || *offset < 0 {
		return fmt.Errorf("materialize: -dump and -offset are required")
	}

	f, err := os.Open(*dumpPath)
	if err != nil {
		return fmt.Errorf("materialize: open %s: %w", *dumpPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("materialize: stat %s: %w", *dumpPath, err)
	}

	idx, err := scan.Scan(binsrc.NewSize(f, int(info.Size())))
	if err != nil {
		return fmt.Errorf("materialize: scan %s: %w", *dumpPath, err)
	}

	entry, ok := idx.At(*offset)
	if !ok {
		return fmt.Errorf("materialize: no group or graph record starts at offset %d", *offset)
	}

	cc, err := openContent(*dumpPath)
	if err != nil {
		return err
	}
	defer cc.Close()

	pub, err := notify.New(notify.Config(config.Keys.Notify))
	if err != nil {
		return fmt.Errorf("materialize: notify.New: %w", err)
	}
	defer pub.Close()

	ls, err := lazy.NewLoadSupport(cc, config.Keys.Lazy.CacheSize, pub, config.Keys.Lazy.InternStrings)
	if err != nil {
		return fmt.Errorf("materialize: new load support: %w", err)
	}

	ctx := context.Background()
	switch entry.Type {
	case scan.RecordGroup:
		g, err := ls.LoadGroup(ctx, entry)
		if err != nil {
			return fmt.Errorf("materialize: load group at offset %d: %w", *offset, err)
		}
		fmt.Printf("group %q: %d direct children\n", g.Name, len(g.Elements))
	case scan.RecordGraph:
		gr, err := ls.LoadGraph(ctx, entry)
		if err != nil {
			return fmt.Errorf("materialize: load graph at offset %d: %w", *offset, err)
		}
		fmt.Printf("graph %q: %d nodes, %d input edges, %d successor edges, %d blocks, duplicate=%t\n",
			gr.Name, len(gr.Nodes), len(gr.InputEdges), len(gr.SuxEdges), len(gr.Blocks), gr.IsDuplicate)
	default:
		return fmt.Errorf("materialize: unknown record type %v at offset %d", entry.Type, *offset)
	}
	return nil
}

// openContent builds the content.CachedContent backend configured for the
// process, substituting dumpPath for a file-backend path given directly on
// the command line.
func openContent(dumpPath string) (content.CachedContent, error) {
	switch config.Keys.Content.Kind {
	case "s3":
		b, err := s3content.New(context.Background(), s3content.Config(config.Keys.Content.S3))
		if err != nil {
			return nil, fmt.Errorf("materialize: s3content.New: %w", err)
		}
		return b, nil
	default:
		b, err := filecontent.New(dumpPath)
		if err != nil {
			return nil, fmt.Errorf("materialize: filecontent.New: %w", err)
		}
		return b, nil
	}
}
