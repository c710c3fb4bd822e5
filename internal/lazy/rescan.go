// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lazy

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/fau-hpc/bgvtrace/pkg/log"
)

// Rescanner periodically re-runs a scan over a dump still being appended
// to, so new top-level groups/graphs become visible in the StreamIndex
// without the caller having to poll for them manually. It is a thin
// gocron.Scheduler wrapper around a single registered job.
type Rescanner struct {
	s gocron.Scheduler
}

// NewRescanner creates a stopped Rescanner. Call Start after registering a
// rescan job with Register.
func NewRescanner() (*Rescanner, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Rescanner{s: s}, nil
}

// Register schedules rescan to run every interval. The Rescanner keeps no
// position between runs; how much of the dump each run walks is up to
// rescan (the serve command's job re-scans the dump from its first byte).
func (r *Rescanner) Register(interval time.Duration, rescan func()) {
	r.s.NewJob(gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			rescan()
			log.Debug("lazy: rescan took " + time.Since(start).String())
		}))
}

// Start begins running registered jobs.
func (r *Rescanner) Start() {
	r.s.Start()
}

// Shutdown stops the scheduler and waits for in-flight jobs to finish.
func (r *Rescanner) Shutdown() error {
	return r.s.Shutdown()
}
