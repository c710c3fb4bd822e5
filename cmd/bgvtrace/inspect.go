// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fau-hpc/bgvtrace/internal/config"
	"github.com/fau-hpc/bgvtrace/internal/indexstore"
)

// runInspect prints a previously persisted StreamIndex's catalog: either
// the document-level groups/graphs of a dump (default), or just the
// graphs the scan marked as a duplicate of their preceding sibling
// (-duplicates).
func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dumpPath := fs.String("dump", "", "Path to the dump whose persisted index should be inspected (required)")
	duplicatesOnly := fs.Bool("duplicates", false, "List only graphs marked as a duplicate of their preceding sibling")
	parentID := fs.Int64("children-of", -1, "List the children of the entry with this row id instead of the top level")
	fs.Parse(args)

	if *dumpPath == "" {
		return fmt.Errorf("inspect: -dump is required")
	}

	store, err := indexstore.Open(config.Keys.IndexStore.Driver, config.Keys.IndexStore.DSN)
	if err != nil {
		return fmt.Errorf("inspect: open index store: %w", err)
	}
	defer store.Close()

	var rows []indexstore.Row
	switch {
	case *duplicatesOnly:
		rows, err = store.Duplicates(*dumpPath)
	case *parentID >= 0:
		rows, err = store.Children(*parentID)
	default:
		rows, err = store.TopLevel(*dumpPath)
	}
	if err != nil {
		return fmt.Errorf("inspect: query: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tSTART\tEND\tNODES\tEDGES\tDUPLICATE")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%t\n",
			r.ID, r.Type, r.Name, r.StartOffset, r.EndOffset, r.NodeCount, r.EdgeCount, r.IsDuplicate)
	}
	return w.Flush()
}
