// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package model holds the in-memory representation of a decoded dump:
// Groups and Graphs (FolderElements), their nodes, edges and blocks, and the
// default Builder (ModelBuilder) that materializes them from reader events.
package model

// Properties is an ordered string-keyed bag of property values. Order is
// preserved (the order keys were first set in) because property iteration
// order is user-visible in dumps and diffs.
type Properties struct {
	keys   []string
	values map[string]any
}

// NewProperties returns an empty Properties bag.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

// Set stores key=value, appending key to the iteration order on first use.
// A collision with a reserved system property key (see systemKeys) is
// avoided by prefixing the user key with "!data." first.
func (p *Properties) Set(key string, value any) {
	if isSystemKey(key) {
		key = "!data." + key
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key and whether it was present.
func (p *Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the property keys in insertion order.
func (p *Properties) Keys() []string {
	return p.keys
}

var systemKeys = map[string]bool{
	"hasPredecessor": true,
	"name":           true,
	"class":          true,
	"id":             true,
	"idx":            true,
	"block":          true,
}

func isSystemKey(k string) bool {
	return systemKeys[k]
}

// InputEdge is an immutable, materialized data-flow edge: From (the
// producing node) to To (the consuming node) at the consumer's input port
// PortIndex/PortName. SourceHasSuccessor is filled in by makeGraphEdges: 1 if
// From has at least one outgoing successor edge of its own, else 0 -- used
// by the layout engine (out of scope here) to distinguish data from control
// predecessors.
type InputEdge struct {
	From, To           int32
	PortIndex          int
	PortName           string
	List               bool
	SourceHasSuccessor int
}

// SuccessorEdge is an immutable, materialized control-flow edge: From (the
// node whose successor list this came from) to To (the successor node).
type SuccessorEdge struct {
	From, To  int32
	PortIndex int
	PortName  string
	List      bool
}

// InputNode is a single graph node: its pooled schema (NodeClass), whether
// it was flagged as having a predecessor, and its property bag. DisplayName
// is the NodeClass.NameTemplate expanded against Properties and the node's
// input edges (see template.go).
type InputNode struct {
	ID             int32
	Class          NodeClassRef
	HasPredecessor bool
	Properties     *Properties
	DisplayName    string
}

// NodeClassRef is the subset of pool.NodeClass an InputNode needs to retain
// after parsing: its name, template, and port list (for template expansion
// and edge direction lookups).
type NodeClassRef struct {
	ClassName    string
	NameTemplate string
	InputPorts   []PortRef
	SuxPorts     []PortRef
}

// PortRef is the model-level mirror of pool.Port.
type PortRef struct {
	IsList bool
	Name   string
}

// InputBlock is a named collection of node ids forming a basic block, plus
// its outgoing block-edge targets (by block id, resolved to names once all
// blocks are known).
type InputBlock struct {
	Name        string
	NodeIDs     []int32
	edgeTargets []int32 // block ids, resolved by MakeBlockEdges
}

// BlockEdge is a materialized edge between two blocks, by name.
type BlockEdge struct {
	From, To string
}

// InputGraph is a single decoded graph: its nodes (insertion order
// preserved), edges, and blocks. IsDuplicate is set by the reader's
// digest-based adjacent-duplicate detector.
type InputGraph struct {
	Name        string
	Properties  *Properties
	NodeOrder   []int32
	Nodes       map[int32]*InputNode
	InputEdges  []InputEdge
	SuxEdges    []SuccessorEdge
	BlockOrder  []string
	Blocks      map[string]*InputBlock
	BlockEdges  []BlockEdge
	NodeToBlock map[int32]string
	IsDuplicate bool

	Parent *Group
}

func newInputGraph(name string) *InputGraph {
	return &InputGraph{
		Name:        name,
		Properties:  NewProperties(),
		Nodes:       make(map[int32]*InputNode),
		Blocks:      make(map[string]*InputBlock),
		NodeToBlock: make(map[int32]string),
	}
}
