// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// configSchema is the JSON Schema a config file is validated against
// before being decoded into Config.
var configSchema = `
	{
  "type": "object",
  "properties": {
    "addr": {
      "description": "Bind address of the localhost debug/inspection listener (for example: 'localhost:8880'). Empty disables it.",
      "type": "string"
    },
    "logLevel": {
      "description": "Minimum level written to the log writers.",
      "type": "string",
      "enum": ["debug", "info", "notice", "warn", "err", "crit"]
    },
    "content": {
      "description": "Selects the backend a LazyGroup/LazyGraph re-reads byte ranges of the dump through.",
      "type": "object",
      "properties": {
        "kind": {
          "type": "string",
          "enum": ["file", "s3"]
        },
        "file": {
          "type": "object",
          "properties": {
            "path": { "type": "string" }
          }
        },
        "s3": {
          "type": "object",
          "properties": {
            "bucket": { "type": "string" },
            "key": { "type": "string" },
            "region": { "type": "string" },
            "accessKeyId": { "type": "string" },
            "secretAccessKey": { "type": "string" }
          }
        }
      },
      "required": ["kind"]
    },
    "indexStore": {
      "description": "SQL database the StreamIndex produced by a scan is persisted to.",
      "type": "object",
      "properties": {
        "driver": { "type": "string", "enum": ["sqlite3", "mysql"] },
        "dsn": { "type": "string" }
      }
    },
    "lazy": {
      "description": "Tunes internal/lazy's LoadSupport retention cache and string interning.",
      "type": "object",
      "properties": {
        "cacheSize": {
          "description": "Maximum number of materialized groups/graphs retained before the least recently used one is evicted.",
          "type": "integer",
          "minimum": 1
        },
        "internStrings": {
          "description": "Identity-coalesce strings used as property keys/values. Must not change observable property values.",
          "type": "boolean"
        }
      }
    },
    "notify": {
      "description": "Optional NATS publisher for graph lifecycle events. Omit or leave address empty to disable.",
      "type": "object",
      "properties": {
        "address": { "type": "string" },
        "username": { "type": "string" },
        "password": { "type": "string" },
        "credsFilePath": { "type": "string" }
      }
    },
    "rescan": {
      "description": "Periodic re-scan of a dump that is still being appended to.",
      "type": "object",
      "properties": {
        "enabled": { "type": "boolean" },
        "interval": {
          "description": "Parsed with time.ParseDuration, e.g. '5s'.",
          "type": "string"
        }
      }
    }
  },
  "required": ["content"]
	}`
