// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/config"
	"github.com/fau-hpc/bgvtrace/internal/indexstore"
	"github.com/fau-hpc/bgvtrace/internal/scan"
	"github.com/fau-hpc/bgvtrace/pkg/log"
)

// runScan reads the dump at -dump end to end with a ScanningModelBuilder
// and persists the resulting StreamIndex to internal/indexstore, keyed by
// the dump's own path so a later inspect/materialize invocation can find
// it again without rescanning.
func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dumpPath := fs.String("dump", "", "Path to the binary dump file to scan (required)")
	fs.Parse(args)

	if *dumpPath == "" {
		return fmt.Errorf("scan: -dump is required")
	}

	f, err := os.Open(*dumpPath)
	if err != nil {
		return fmt.Errorf("scan: open %s: %w", *dumpPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("scan: stat %s: %w", *dumpPath, err)
	}

	start := time.Now()
	src := binsrc.NewSize(f, int(info.Size()))
	idx, err := scan.Scan(src)
	if err != nil {
		return fmt.Errorf("scan: %s: %w", *dumpPath, err)
	}
	log.Infof("scan: %s indexed in %s, %d entries (%d top-level)",
		*dumpPath, time.Since(start), idx.Len(), len(idx.TopLevel()))

	store, err := indexstore.Open(config.Keys.IndexStore.Driver, config.Keys.IndexStore.DSN)
	if err != nil {
		return fmt.Errorf("scan: open index store: %w", err)
	}
	defer store.Close()

	if err := store.Save(*dumpPath, idx); err != nil {
		return fmt.Errorf("scan: save index for %s: %w", *dumpPath, err)
	}

	log.Infof("scan: index for %s persisted to %s (%s)", *dumpPath, config.Keys.IndexStore.DSN, config.Keys.IndexStore.Driver)
	return nil
}
