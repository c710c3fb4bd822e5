// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package debugserver exposes a localhost-bound HTTP surface for operator
// inspection of a scanned dump's catalog and the process's Prometheus
// metrics, built on a gorilla/mux router plus gorilla/handlers middleware
// stack, scoped down to read-only JSON endpoints over internal/indexstore:
// this is operator observability, not a public API, so there is no
// GraphQL endpoint, no auth middleware and no
// templated HTML.
package debugserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/fau-hpc/bgvtrace/internal/indexstore"
	"github.com/fau-hpc/bgvtrace/internal/metrics"
	"github.com/fau-hpc/bgvtrace/pkg/log"
)

// Server serves /metrics plus a handful of JSON inspection routes over an
// indexstore.Store.
type Server struct {
	router   *mux.Router
	http     *http.Server
	listener net.Listener
}

// New builds a Server bound to addr, backed by store for the /index
// routes. addr is expected to be a loopback address; nothing here
// enforces that, the caller's configuration is the enforcement point.
func New(addr string, store *indexstore.Store) (*Server, error) {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/index").Subrouter()
	api.HandleFunc("/top", topLevelHandler(store)).Methods(http.MethodGet)
	api.HandleFunc("/children/{id:[0-9]+}", childrenHandler(store)).Methods(http.MethodGet)
	api.HandleFunc("/duplicates", duplicatesHandler(store)).Methods(http.MethodGet)
	api.HandleFunc("/offset/{offset:[0-9]+}", byOffsetHandler(store)).Methods(http.MethodGet)

	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	r.Use(handlers.CompressHandler)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("debugserver: listen on %s: %w", addr, err)
	}

	logged := handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %dms)", params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, time.Since(params.TimeStamp).Milliseconds())
	})

	return &Server{
		router:   r,
		listener: listener,
		http: &http.Server{
			Handler:      logged,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// Addr returns the actual bound address, useful when the configured port
// was 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks, accepting connections until Shutdown is called.
func (s *Server) Serve() error {
	if err := s.http.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("debugserver: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Errorf("debugserver: encode response: %v", err)
	}
}

func writeError(rw http.ResponseWriter, status int, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
}

func topLevelHandler(store *indexstore.Store) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		dumpPath := r.URL.Query().Get("dump")
		if dumpPath == "" {
			writeError(rw, http.StatusBadRequest, fmt.Errorf("missing required query parameter %q", "dump"))
			return
		}
		rows, err := store.TopLevel(dumpPath)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, rows)
	}
}

func childrenHandler(store *indexstore.Store) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		rows, err := store.Children(id)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, rows)
	}
}

func duplicatesHandler(store *indexstore.Store) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		dumpPath := r.URL.Query().Get("dump")
		if dumpPath == "" {
			writeError(rw, http.StatusBadRequest, fmt.Errorf("missing required query parameter %q", "dump"))
			return
		}
		rows, err := store.Duplicates(dumpPath)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, rows)
	}
}

func byOffsetHandler(store *indexstore.Store) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		dumpPath := r.URL.Query().Get("dump")
		if dumpPath == "" {
			writeError(rw, http.StatusBadRequest, fmt.Errorf("missing required query parameter %q", "dump"))
			return
		}
		offset, err := strconv.ParseInt(mux.Vars(r)["offset"], 10, 64)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		row, err := store.ByOffset(dumpPath, offset)
		if err != nil {
			writeError(rw, http.StatusNotFound, err)
			return
		}
		writeJSON(rw, row)
	}
}
