// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package indexstore persists a scan.StreamIndex's catalog (byte ranges,
// nesting, duplicate markers, node/edge counts) to a SQL database, so a
// dump's shape can be browsed without re-scanning it on every process
// restart. Queries go through sqlx over a sqlhooks-wrapped driver, schema
// changes are managed with golang-migrate, and queries are built with
// squirrel.
//
// The ConstantPool snapshots a StreamEntry carries (InitialPool/SkipPool)
// are not persisted here: they are plain in-process object graphs, not
// SQL-shaped data, and re-materializing a lazily loaded group or graph
// after a process restart requires re-running scan.Scan to rebuild them.
// The catalog this package stores is for inspection and duplicate
// reporting across restarts, not for skipping a re-scan.
package indexstore

import (
	"database/sql"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/fau-hpc/bgvtrace/internal/scan"
)

var registerOnce sync.Once

// Store wraps a sqlx.DB holding the stream_entry catalog table.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to driver/dsn, registers query logging hooks for sqlite3,
// and migrates the schema to the latest version.
func Open(driver, dsn string) (*Store, error) {
	var db *sqlx.DB
	var err error

	switch driver {
	case "sqlite3":
		registerOnce.Do(func() {
			sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, hooks{}))
		})
		db, err = sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
		if err != nil {
			return nil, fmt.Errorf("indexstore: open sqlite3 %s: %w", dsn, err)
		}
		// sqlite3 does not support concurrent writers; a single
		// connection avoids lock-wait storms from overlapping scans.
		db.SetMaxOpenConns(1)
	case "mysql":
		db, err = sqlx.Open("mysql", fmt.Sprintf("%s?multiStatements=true", dsn))
		if err != nil {
			return nil, fmt.Errorf("indexstore: open mysql %s: %w", dsn, err)
		}
	default:
		return nil, fmt.Errorf("indexstore: unsupported driver %q", driver)
	}

	if err := runMigrations(driver, db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, driver: driver}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Row is the persisted projection of one scan.StreamEntry.
type Row struct {
	ID           int64  `db:"id"`
	DumpPath     string `db:"dump_path"`
	ParentID     *int64 `db:"parent_id"`
	Depth        int    `db:"depth"`
	Ordinal      int    `db:"ordinal"`
	Type         string `db:"type"`
	Name         string `db:"name"`
	MajorVersion int    `db:"major_version"`
	MinorVersion int    `db:"minor_version"`
	StartOffset  int64  `db:"start_offset"`
	EndOffset    int64  `db:"end_offset"`
	NodeCount    int    `db:"node_count"`
	EdgeCount    int    `db:"edge_count"`
	IsDuplicate  bool   `db:"is_duplicate"`
}

// Save replaces dumpPath's catalog with idx's current contents: every
// prior row for dumpPath is deleted, then idx is walked depth-first and
// re-inserted inside one transaction.
func (s *Store) Save(dumpPath string, idx *scan.StreamIndex) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("indexstore: begin transaction: %w", err)
	}
	defer tx.Rollback()

	del, args, err := sq.Delete("stream_entry").Where(sq.Eq{"dump_path": dumpPath}).ToSql()
	if err != nil {
		return fmt.Errorf("indexstore: build delete: %w", err)
	}
	if _, err := tx.Exec(del, args...); err != nil {
		return fmt.Errorf("indexstore: clear prior catalog for %s: %w", dumpPath, err)
	}

	ids := make(map[*scan.StreamEntry]int64)
	ordinal := make(map[*scan.StreamEntry]int)

	var insert func(e *scan.StreamEntry) error
	insert = func(e *scan.StreamEntry) error {
		var parentID *int64
		if e.Parent != nil {
			id := ids[e.Parent]
			parentID = &id
		}

		row := Row{
			DumpPath:     dumpPath,
			ParentID:     parentID,
			Depth:        e.Depth(),
			Ordinal:      ordinal[e.Parent],
			Type:         e.Type.String(),
			Name:         e.Name,
			MajorVersion: int(e.MajorVersion),
			MinorVersion: int(e.MinorVersion),
			StartOffset:  e.Start,
			EndOffset:    e.End,
		}
		if e.GraphMeta != nil {
			row.NodeCount = e.GraphMeta.NodeIDs.Count()
			row.EdgeCount = e.GraphMeta.EdgeCount
			row.IsDuplicate = e.GraphMeta.IsDuplicate
		}
		ordinal[e.Parent]++

		res, err := tx.NamedExec(`INSERT INTO stream_entry (
			dump_path, parent_id, depth, ordinal, type, name, major_version, minor_version,
			start_offset, end_offset, node_count, edge_count, is_duplicate
		) VALUES (
			:dump_path, :parent_id, :depth, :ordinal, :type, :name, :major_version, :minor_version,
			:start_offset, :end_offset, :node_count, :edge_count, :is_duplicate
		)`, row)
		if err != nil {
			return fmt.Errorf("indexstore: insert entry at offset %d: %w", e.Start, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("indexstore: last insert id for offset %d: %w", e.Start, err)
		}
		ids[e] = id

		for _, child := range e.Children {
			if err := insert(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, top := range idx.TopLevel() {
		if err := insert(top); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexstore: commit catalog for %s: %w", dumpPath, err)
	}
	return nil
}

// TopLevel returns dumpPath's document-level rows, in scan order.
func (s *Store) TopLevel(dumpPath string) ([]Row, error) {
	query, args, err := sq.Select("*").From("stream_entry").
		Where(sq.Eq{"dump_path": dumpPath, "parent_id": nil}).
		OrderBy("ordinal").ToSql()
	if err != nil {
		return nil, fmt.Errorf("indexstore: build top-level query: %w", err)
	}
	var rows []Row
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("indexstore: query top-level for %s: %w", dumpPath, err)
	}
	return rows, nil
}

// Children returns parentID's direct children, in scan order.
func (s *Store) Children(parentID int64) ([]Row, error) {
	query, args, err := sq.Select("*").From("stream_entry").
		Where(sq.Eq{"parent_id": parentID}).
		OrderBy("ordinal").ToSql()
	if err != nil {
		return nil, fmt.Errorf("indexstore: build children query: %w", err)
	}
	var rows []Row
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("indexstore: query children of %d: %w", parentID, err)
	}
	return rows, nil
}

// Duplicates returns every graph row marked as a duplicate for dumpPath.
func (s *Store) Duplicates(dumpPath string) ([]Row, error) {
	query, args, err := sq.Select("*").From("stream_entry").
		Where(sq.Eq{"dump_path": dumpPath, "type": "graph", "is_duplicate": true}).
		OrderBy("start_offset").ToSql()
	if err != nil {
		return nil, fmt.Errorf("indexstore: build duplicates query: %w", err)
	}
	var rows []Row
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("indexstore: query duplicates for %s: %w", dumpPath, err)
	}
	return rows, nil
}

// ByOffset returns the row for dumpPath whose start offset equals offset.
func (s *Store) ByOffset(dumpPath string, offset int64) (Row, error) {
	query, args, err := sq.Select("*").From("stream_entry").
		Where(sq.Eq{"dump_path": dumpPath, "start_offset": offset}).ToSql()
	if err != nil {
		return Row{}, fmt.Errorf("indexstore: build offset query: %w", err)
	}
	var row Row
	if err := s.db.Get(&row, query, args...); err != nil {
		return Row{}, fmt.Errorf("indexstore: query %s at offset %d: %w", dumpPath, offset, err)
	}
	return row, nil
}
