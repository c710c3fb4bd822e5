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
	"os/signal"
	"syscall"
	"time"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/config"
	"github.com/fau-hpc/bgvtrace/internal/debugserver"
	"github.com/fau-hpc/bgvtrace/internal/indexstore"
	"github.com/fau-hpc/bgvtrace/internal/lazy"
	"github.com/fau-hpc/bgvtrace/internal/scan"
	"github.com/fau-hpc/bgvtrace/pkg/log"
)

// runServe starts the localhost debug/inspection listener (internal/
// debugserver) over the persisted catalog, optionally alongside a periodic
// rescan of -dump (internal/lazy.Rescanner) for an append-only dump that is
// still being written to. It blocks until SIGINT/SIGTERM.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dumpPath := fs.String("dump", "", "Path to a dump to periodically rescan; only used when config's rescan.enabled is true")
	fs.Parse(args)

	if config.Keys.Addr == "" {
		return fmt.Errorf("serve: addr is empty, nothing to serve")
	}

	store, err := indexstore.Open(config.Keys.IndexStore.Driver, config.Keys.IndexStore.DSN)
	if err != nil {
		return fmt.Errorf("serve: open index store: %w", err)
	}
	defer store.Close()

	srv, err := debugserver.New(config.Keys.Addr, store)
	if err != nil {
		return fmt.Errorf("serve: new debugserver: %w", err)
	}

	var rescanner *lazy.Rescanner
	if config.Keys.Rescan.Enabled {
		if *dumpPath == "" {
			return fmt.Errorf("serve: rescan.enabled but -dump was not given")
		}
		interval, err := time.ParseDuration(config.Keys.Rescan.Interval)
		if err != nil {
			return fmt.Errorf("serve: parse rescan.interval %q: %w", config.Keys.Rescan.Interval, err)
		}
		rescanner, err = lazy.NewRescanner()
		if err != nil {
			return fmt.Errorf("serve: new rescanner: %w", err)
		}
		rescanner.Register(interval, func() {
			if err := rescanOnce(store, *dumpPath); err != nil {
				log.Warn(fmt.Sprintf("serve: rescan of %s failed: %v", *dumpPath, err))
			}
		})
		rescanner.Start()
		log.Infof("serve: rescanning %s every %s", *dumpPath, interval)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	log.Infof("serve: listening on %s", srv.Addr())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigs:
		log.Info("serve: shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if rescanner != nil {
		if err := rescanner.Shutdown(); err != nil {
			log.Warn(fmt.Sprintf("serve: rescanner shutdown: %v", err))
		}
	}
	return srv.Shutdown(ctx)
}

// rescanOnce re-scans dumpPath end to end and replaces its catalog in
// store. A full re-scan is simpler than tracking the previous run's
// end-of-stream offset and is cheap relative to the Completer-side lazy
// materialization this index exists to support.
func rescanOnce(store *indexstore.Store, dumpPath string) error {
	f, err := os.Open(dumpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	idx, err := scan.Scan(binsrc.NewSize(f, int(info.Size())))
	if err != nil {
		return err
	}
	return store.Save(dumpPath, idx)
}
