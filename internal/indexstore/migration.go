// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package indexstore

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*
var migrationFiles embed.FS

// runMigrations brings db up to the latest schema version, selecting the
// migrate database driver that matches the configured SQL driver.
func runMigrations(driver string, db *sql.DB) error {
	var m *migrate.Migrate

	switch driver {
	case "sqlite3":
		instance, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("indexstore: sqlite3 migration driver: %w", err)
		}
		src, err := iofs.New(migrationFiles, "migrations/sqlite3")
		if err != nil {
			return fmt.Errorf("indexstore: open embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", instance)
		if err != nil {
			return fmt.Errorf("indexstore: new migrate instance: %w", err)
		}
	case "mysql":
		instance, err := mysql.WithInstance(db, &mysql.Config{})
		if err != nil {
			return fmt.Errorf("indexstore: mysql migration driver: %w", err)
		}
		src, err := iofs.New(migrationFiles, "migrations/mysql")
		if err != nil {
			return fmt.Errorf("indexstore: open embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", instance)
		if err != nil {
			return fmt.Errorf("indexstore: new migrate instance: %w", err)
		}
	default:
		return fmt.Errorf("indexstore: unsupported driver %q", driver)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("indexstore: migrate up: %w", err)
	}
	return nil
}
