// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package notify publishes graph lifecycle events to NATS: a graph being
// materialized on demand, and a graph scan recognized as a duplicate of
// an already-seen one. A Publisher is a no-op when no NATS address is
// configured.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/fau-hpc/bgvtrace/pkg/log"
)

const (
	SubjectGraphMaterialized = "bgvtrace.graph.materialized"
	SubjectGraphDuplicate    = "bgvtrace.graph.duplicate"
)

// Config holds the connection settings for the NATS publisher.
type Config struct {
	Address       string `json:"address"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFilePath string `json:"credsFilePath,omitempty"`
}

// GraphEvent is the payload published on both subjects.
type GraphEvent struct {
	// Offset is the StreamEntry.Start byte offset identifying the record.
	Offset int64  `json:"offset"`
	Name   string `json:"name"`
}

// Publisher announces graph lifecycle events. Methods never return an
// error: a publish failure is logged and otherwise swallowed, since
// notification is observability, not a correctness requirement of the
// reader itself.
type Publisher interface {
	GraphMaterialized(offset int64, name string)
	GraphDuplicate(offset int64, name string)
	Close()
}

type noopPublisher struct{}

func (noopPublisher) GraphMaterialized(int64, string) {}
func (noopPublisher) GraphDuplicate(int64, string)    {}
func (noopPublisher) Close()                          {}

// Noop is a Publisher that discards every event.
var Noop Publisher = noopPublisher{}

type natsPublisher struct {
	conn          *nats.Conn
	subscriptions []*nats.Subscription
	mu            sync.Mutex
}

// New connects to cfg.Address and returns a Publisher backed by it. If
// cfg.Address is empty, New returns Noop without attempting a connection.
func New(cfg Config) (Publisher, error) {
	if cfg.Address == "" {
		log.Info("notify: no NATS address configured, events will not be published")
		return Noop, nil
	}

	var opts []nats.Option

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}

	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			log.Warn(fmt.Sprintf("notify: NATS disconnected: %v", err))
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		log.Info(fmt.Sprintf("notify: NATS reconnected to %s", nc.ConnectedUrl()))
	}))
	opts = append(opts, nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		log.Error(fmt.Sprintf("notify: NATS error: %v", err))
	}))

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to %s: %w", cfg.Address, err)
	}
	log.Info(fmt.Sprintf("notify: connected to %s", cfg.Address))

	return &natsPublisher{conn: nc}, nil
}

func (p *natsPublisher) publish(subject string, ev GraphEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error(fmt.Sprintf("notify: marshal event for %s: %v", subject, err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.Warn(fmt.Sprintf("notify: publish to %s failed: %v", subject, err))
	}
}

func (p *natsPublisher) GraphMaterialized(offset int64, name string) {
	p.publish(SubjectGraphMaterialized, GraphEvent{Offset: offset, Name: name})
}

func (p *natsPublisher) GraphDuplicate(offset int64, name string) {
	p.publish(SubjectGraphDuplicate, GraphEvent{Offset: offset, Name: name})
}

func (p *natsPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		log.Info("notify: NATS connection closed")
	}
}
