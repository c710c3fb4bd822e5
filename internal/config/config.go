// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the JSON configuration file wiring
// together a dump source, an index store, the lazy-load retention cache
// and an optional NATS publisher: JSON decoding plus embedded
// JSON-Schema validation, with DisallowUnknownFields enforced on top.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// ContentConfig selects and configures the backend a LoadSupport reads
// byte ranges of the dump through (internal/content's two
// implementations).
type ContentConfig struct {
	// Kind is "file" or "s3".
	Kind string `json:"kind"`
	File struct {
		Path string `json:"path"`
	} `json:"file,omitempty"`
	S3 struct {
		Bucket          string `json:"bucket"`
		Key             string `json:"key"`
		Region          string `json:"region"`
		AccessKeyID     string `json:"accessKeyId,omitempty"`
		SecretAccessKey string `json:"secretAccessKey,omitempty"`
	} `json:"s3,omitempty"`
}

// IndexStoreConfig configures the SQL database internal/indexstore
// persists a scan.StreamIndex to, so a scan does not have to be redone on
// every process restart.
type IndexStoreConfig struct {
	Driver string `json:"driver"` // "sqlite3" or "mysql"
	DSN    string `json:"dsn"`
}

// LazyConfig tunes internal/lazy's LoadSupport.
type LazyConfig struct {
	// CacheSize bounds how many materialized groups/graphs LoadSupport
	// retains before evicting the least recently used one, standing in
	// for weak-reference retention.
	CacheSize int `json:"cacheSize"`
	// InternStrings forwards to model.NewModelBuilder; must not change
	// any observable property value, only string identity.
	InternStrings bool `json:"internStrings"`
}

// NotifyConfig mirrors notify.Config; kept separate so internal/config
// does not need to import internal/notify.
type NotifyConfig struct {
	Address       string `json:"address,omitempty"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFilePath string `json:"credsFilePath,omitempty"`
}

// RescanConfig controls internal/lazy's Rescanner, used when a dump is
// still being appended to by its producer.
type RescanConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval"` // parsed with time.ParseDuration
}

// Config is the root configuration document.
type Config struct {
	// Addr is the bind address of the localhost debug/inspection listener
	// (internal/debugserver), which also mounts /metrics for Prometheus
	// scraping. Empty disables it.
	Addr     string `json:"addr"`
	LogLevel string `json:"logLevel"`

	Content    ContentConfig    `json:"content"`
	IndexStore IndexStoreConfig `json:"indexStore"`
	Lazy       LazyConfig       `json:"lazy"`
	Notify     NotifyConfig     `json:"notify,omitempty"`
	Rescan     RescanConfig     `json:"rescan,omitempty"`
}

// Keys holds the active configuration, populated by Init. Defaults match
// a minimal single-user deployment reading one local dump file.
var Keys Config = Config{
	Addr:     "localhost:8880",
	LogLevel: "info",
	Content: ContentConfig{
		Kind: "file",
	},
	IndexStore: IndexStoreConfig{
		Driver: "sqlite3",
		DSN:    "./var/bgvtrace-index.db",
	},
	Lazy: LazyConfig{
		CacheSize:     256,
		InternStrings: true,
	},
	Rescan: RescanConfig{
		Enabled:  false,
		Interval: "5s",
	},
}

// Init reads flagConfigFile, validates it against the embedded JSON
// Schema and decodes it on top of Keys's defaults. A missing file is not
// an error: the process runs on defaults alone.
func Init(flagConfigFile string) error {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", flagConfigFile, err)
	}

	if err := Validate(configSchema, raw); err != nil {
		return fmt.Errorf("config: validate %s: %w", flagConfigFile, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("config: decode %s: %w", flagConfigFile, err)
	}

	if Keys.Content.Kind != "file" && Keys.Content.Kind != "s3" {
		return fmt.Errorf("config: content.kind must be \"file\" or \"s3\", got %q", Keys.Content.Kind)
	}

	return nil
}
