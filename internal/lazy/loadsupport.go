// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lazy materializes a single group or graph from a scan.StreamIndex
// entry on demand, without holding the rest of the dump in memory. It is
// the consumer-facing half of the scan/reload split: internal/scan builds
// the index cheaply in one pass; LoadSupport re-reads just the byte range a
// caller actually asked for, the second time decoding it fully via
// internal/model.
package lazy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fau-hpc/bgvtrace/internal/content"
	"github.com/fau-hpc/bgvtrace/internal/metrics"
	"github.com/fau-hpc/bgvtrace/internal/model"
	"github.com/fau-hpc/bgvtrace/internal/notify"
	"github.com/fau-hpc/bgvtrace/internal/scan"
	"github.com/fau-hpc/bgvtrace/pkg/log"
)

// MaxCompleteAttempts bounds how many times in total a Completer attempts a target
// whose range isn't readable yet (the dump is still being appended to)
// before giving up, per the retry-with-backoff resolution of the
// "concurrent append" design question.
const MaxCompleteAttempts = 5

// DefaultRetryInterval paces retries of an unavailable range; one token is
// consumed per attempt after the first.
const DefaultRetryInterval = 200 * time.Millisecond

// ErrNotYetAvailable is returned when a target's bytes could not be read
// after MaxCompleteAttempts attempts.
var ErrNotYetAvailable = errors.New("lazy: target range not yet available after max retries")

// LoadSupport is the shared infrastructure a LazyGroup or LazyGraph draws on
// to materialize itself: a content.CachedContent backend to re-read a byte
// range, a bounded retention cache standing in for a weak reference (Go has
// no first-class equivalent), and a singleflight.Group coalescing
// concurrent requests for the same range into a single Completer run.
type LoadSupport struct {
	content   content.CachedContent
	cache     *lru.Cache[int64, any]
	flight    singleflight.Group
	limiter   *rate.Limiter
	publisher notify.Publisher
	intern    bool
}

// NewLoadSupport returns a LoadSupport reading ranges from cc, retaining up
// to cacheSize materialized groups/graphs, and publishing lifecycle events
// through pub (notify.Noop if pub is nil). intern is forwarded to every
// model.ModelBuilder a Completer constructs.
func NewLoadSupport(cc content.CachedContent, cacheSize int, pub notify.Publisher, intern bool) (*LoadSupport, error) {
	cache, err := lru.New[int64, any](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("lazy: new retention cache: %w", err)
	}
	if pub == nil {
		pub = notify.Noop
	}
	return &LoadSupport{
		content:   cc,
		cache:     cache,
		limiter:   rate.NewLimiter(rate.Every(DefaultRetryInterval), 1),
		publisher: pub,
		intern:    intern,
	}, nil
}

// LoadGroup materializes the group at entry, from the retention cache if
// present, otherwise via a (possibly retried) Completer run. Concurrent
// calls for the same entry coalesce into one underlying completion.
func (ls *LoadSupport) LoadGroup(ctx context.Context, entry *scan.StreamEntry) (*model.Group, error) {
	v, err := ls.load(ctx, entry, ls.completeGroup)
	if err != nil {
		return nil, err
	}
	return v.(*model.Group), nil
}

// LoadGraph is LoadGroup's counterpart for graph entries.
func (ls *LoadSupport) LoadGraph(ctx context.Context, entry *scan.StreamEntry) (*model.InputGraph, error) {
	v, err := ls.load(ctx, entry, ls.completeGraph)
	if err != nil {
		return nil, err
	}
	return v.(*model.InputGraph), nil
}

// Evict drops entry's cached materialization, if any, forcing the next
// Load call to re-run its Completer.
func (ls *LoadSupport) Evict(entry *scan.StreamEntry) {
	ls.cache.Remove(entry.Start)
}

func (ls *LoadSupport) load(ctx context.Context, entry *scan.StreamEntry, complete func(context.Context, *scan.StreamEntry) (any, error)) (any, error) {
	if v, ok := ls.cache.Get(entry.Start); ok {
		metrics.CompletionsServed.WithLabelValues("cache").Inc()
		return v, nil
	}

	key := strconv.FormatInt(entry.Start, 10)
	v, err, _ := ls.flight.Do(key, func() (any, error) {
		if v, ok := ls.cache.Get(entry.Start); ok {
			metrics.CompletionsServed.WithLabelValues("cache").Inc()
			return v, nil
		}

		result, err := ls.completeWithRetry(ctx, entry, complete)
		if err != nil {
			return nil, err
		}

		metrics.CompletionsServed.WithLabelValues("fresh").Inc()
		ls.cache.Add(entry.Start, result)
		if entry.Type == scan.RecordGraph {
			if entry.GraphMeta != nil && entry.GraphMeta.IsDuplicate {
				ls.publisher.GraphDuplicate(entry.Start, entry.Name)
			} else {
				ls.publisher.GraphMaterialized(entry.Start, entry.Name)
			}
		}
		return result, nil
	})
	return v, err
}

func (ls *LoadSupport) completeWithRetry(ctx context.Context, entry *scan.StreamEntry, complete func(context.Context, *scan.StreamEntry) (any, error)) (any, error) {
	var lastErr error
	for attempt := 0; attempt < MaxCompleteAttempts; attempt++ {
		if attempt > 0 {
			if err := ls.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			metrics.CompleterRetries.Inc()
		}

		v, err := complete(ctx, entry)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, content.ErrRangeUnavailable) {
			return nil, err
		}

		lastErr = err
		log.Warn(fmt.Sprintf("lazy: range at offset %d not yet available (attempt %d/%d): %v",
			entry.Start, attempt+1, MaxCompleteAttempts, err))
	}

	metrics.CompleterGiveUps.Inc()
	log.Warn(fmt.Sprintf("lazy: giving up on offset %d after %d attempts: %v", entry.Start, MaxCompleteAttempts, lastErr))
	return nil, ErrNotYetAvailable
}
