// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes operator-facing Prometheus counters and gauges
// for the scan/lazy-load pipeline: entries scanned, duplicates detected,
// completions served from cache vs. freshly materialized, and completer
// retry/give-up counts. Grounded on the client_golang registry idiom
// internal/metricdata/prometheus.go uses on the query side of the same
// dependency; this package is the complementary exporter half.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide collector registry bgvtrace's metrics are
// registered against. A dedicated registry (rather than the global
// default) keeps the metrics surface namespaced to this module even when
// embedded as a library.
var Registry = prometheus.NewRegistry()

var (
	// EntriesScanned counts every group/graph record a scan.Scan pass
	// has indexed, labeled by record type.
	EntriesScanned = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "bgvtrace",
		Subsystem: "scan",
		Name:      "entries_total",
		Help:      "Total group/graph records indexed by a scan pass, by record type.",
	}, []string{"type"})

	// DuplicateGraphs counts graphs the reader marked as a duplicate of
	// their prior sibling.
	DuplicateGraphs = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "bgvtrace",
		Subsystem: "scan",
		Name:      "duplicate_graphs_total",
		Help:      "Total graphs marked as a duplicate of their immediately preceding sibling.",
	})

	// CompletionsServed counts LoadSupport completions, labeled by
	// whether the result came from the retention cache or a fresh
	// Completer run.
	CompletionsServed = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "bgvtrace",
		Subsystem: "lazy",
		Name:      "completions_total",
		Help:      "Total LazyGroup/LazyGraph completions served, by source.",
	}, []string{"source"})

	// CompleterRetries counts Completer attempts beyond the first,
	// caused by a range not yet being readable.
	CompleterRetries = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "bgvtrace",
		Subsystem: "lazy",
		Name:      "completer_retries_total",
		Help:      "Total Completer retries caused by content.ErrRangeUnavailable.",
	})

	// CompleterGiveUps counts Completer runs that exhausted their retry
	// budget without the range becoming readable.
	CompleterGiveUps = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "bgvtrace",
		Subsystem: "lazy",
		Name:      "completer_give_ups_total",
		Help:      "Total Completer runs that exhausted MaxCompleteAttempts.",
	})
)

// Handler returns an http.Handler serving Registry in the Prometheus
// exposition format, for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
