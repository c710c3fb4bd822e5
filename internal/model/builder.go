// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"strconv"

	"github.com/fau-hpc/bgvtrace/internal/pool"
	"github.com/fau-hpc/bgvtrace/internal/reader"
)

type frameKind int

const (
	frameFolder frameKind = iota
	frameGraph
	frameNode
)

// frame is one entry of ModelBuilder's parse-context stack: StartGroup,
// StartGraph and StartNode each push one; the matching End* call pops it,
// restoring the previous context exactly.
type frame struct {
	kind frameKind

	folder *Group
	graph  *InputGraph
	node   *InputNode

	props *Properties

	// pendingKey is set by StartNestedProperty and consumed by the next
	// StartGraph call at this nesting level (a PROPERTY_SUBGRAPH value).
	pendingKey string
	// attachKey is the key this frame's own graph must be attached under
	// once it closes, in the parent frame that is exposed again after pop.
	// Empty for toplevel graphs, which attach into the enclosing folder
	// instead.
	attachKey string

	ownInputEdges []InputEdge // this node's own input edges, for template expansion
	blocksByID    map[int32]*InputBlock
}

// ModelBuilder is the default reader.Builder: it materializes every event
// into a Group/InputGraph tree rooted at Root.
type ModelBuilder struct {
	Root *Group

	intern      bool
	internTable map[string]string
	stack       []*frame
}

// NewModelBuilder returns a ModelBuilder with an empty synthetic document
// root. intern controls whether string property keys/values are
// identity-coalesced across the whole parse; it must never change
// observable property values, only string identity.
func NewModelBuilder(intern bool) *ModelBuilder {
	return &ModelBuilder{
		Root:        NewGroup("", "", nil, 0),
		intern:      intern,
		internTable: make(map[string]string),
	}
}

var _ reader.Builder = (*ModelBuilder)(nil)

func (m *ModelBuilder) internStr(s string) string {
	if !m.intern {
		return s
	}
	if v, ok := m.internTable[s]; ok {
		return v
	}
	m.internTable[s] = s
	return s
}

func (m *ModelBuilder) top() *frame {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

func (m *ModelBuilder) currentFolder() *Group {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].kind == frameFolder {
			return m.stack[i].folder
		}
	}
	return m.Root
}

func (m *ModelBuilder) StartGroup(ctx reader.Ctx, name, shortName string, method *pool.Method, bci int32) error {
	g := NewGroup(m.internStr(name), m.internStr(shortName), method, bci)
	m.currentFolder().AddElement(g)
	m.stack = append(m.stack, &frame{kind: frameFolder, folder: g, props: g.Properties})
	return nil
}

func (m *ModelBuilder) StartGroupContent(ctx reader.Ctx) error {
	return nil
}

func (m *ModelBuilder) EndGroup(ctx reader.Ctx) error {
	m.stack = m.stack[:len(m.stack)-1]
	return nil
}

func (m *ModelBuilder) StartGraph(ctx reader.Ctx, title string, toplevel bool) error {
	g := newInputGraph(m.internStr(title))
	f := &frame{kind: frameGraph, graph: g, props: g.Properties, blocksByID: make(map[int32]*InputBlock)}

	if toplevel {
		m.currentFolder().AddElement(g)
	} else {
		parent := m.top()
		f.attachKey = parent.pendingKey
		parent.pendingKey = ""
	}
	m.stack = append(m.stack, f)
	return nil
}

func (m *ModelBuilder) EndGraph(ctx reader.Ctx, toplevel bool) error {
	f := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]

	if f.attachKey != "" {
		if parent := m.top(); parent != nil {
			parent.props.Set(f.attachKey, f.graph)
		}
	}
	return nil
}

func (m *ModelBuilder) MarkGraphDuplicate() {
	if f := m.top(); f != nil && f.kind == frameGraph {
		f.graph.IsDuplicate = true
	}
}

func (m *ModelBuilder) StartNestedProperty(key string) {
	if f := m.top(); f != nil {
		f.pendingKey = m.internStr(key)
	}
}

func (m *ModelBuilder) Property(key string, value any) {
	f := m.top()
	if f == nil {
		return
	}
	f.props.Set(m.internStr(key), m.convertValue(value))
}

func (m *ModelBuilder) convertValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case pool.String:
		return m.internStr(string(v))
	case pool.Entry:
		return poolValue{entry: v}
	case string:
		return m.internStr(v)
	default:
		return v
	}
}

func (m *ModelBuilder) StartNode(id int32, class pool.NodeClass, hasPredecessor bool) {
	node := &InputNode{
		ID:             id,
		Class:          classRefOf(class),
		HasPredecessor: hasPredecessor,
		Properties:     NewProperties(),
	}
	m.stack = append(m.stack, &frame{kind: frameNode, node: node, props: node.Properties})
}

func (m *ModelBuilder) EndNode(id int32) {
	f := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]

	node := f.node
	node.DisplayName = expandNameTemplate(node.Class.NameTemplate, node.Properties, f.ownInputEdges)

	graphFrame := m.top()
	graphFrame.graph.Nodes[node.ID] = node
	graphFrame.graph.NodeOrder = append(graphFrame.graph.NodeOrder, node.ID)
}

func (m *ModelBuilder) InputEdge(from, to int32, portIndex int, portName string, list bool) {
	nodeFrame := m.stack[len(m.stack)-1]
	graphFrame := m.stack[len(m.stack)-2]

	e := InputEdge{From: from, To: to, PortIndex: portIndex, PortName: portName, List: list}
	graphFrame.graph.InputEdges = append(graphFrame.graph.InputEdges, e)
	nodeFrame.ownInputEdges = append(nodeFrame.ownInputEdges, e)
}

func (m *ModelBuilder) SuccessorEdge(from, to int32, portIndex int, portName string, list bool) {
	graphFrame := m.stack[len(m.stack)-2]
	// The wire callback passes (peer, id, ...) uniformly for both edge
	// kinds; for successors the node being parsed (to) is the control-flow
	// source and the peer (from) is the target.
	e := SuccessorEdge{From: to, To: from, PortIndex: portIndex, PortName: portName, List: list}
	graphFrame.graph.SuxEdges = append(graphFrame.graph.SuxEdges, e)
}

func (m *ModelBuilder) StartBlock(id int32) {
	// No-op: the block's content arrives atomically in EndBlock.
}

func (m *ModelBuilder) EndBlock(id int32, nodeIDs []int32, edgeTargets []int32) {
	f := m.top()
	name := blockName(id)
	b := &InputBlock{Name: name, NodeIDs: nodeIDs, edgeTargets: edgeTargets}
	f.graph.Blocks[name] = b
	f.graph.BlockOrder = append(f.graph.BlockOrder, name)
	f.blocksByID[id] = b
	for _, nid := range nodeIDs {
		f.graph.NodeToBlock[nid] = name
	}
}

func (m *ModelBuilder) MakeBlockEdges() {
	f := m.top()
	g := f.graph

	for _, name := range g.BlockOrder {
		b := g.Blocks[name]
		for _, targetID := range b.edgeTargets {
			target, ok := f.blocksByID[targetID]
			if !ok {
				continue
			}
			g.BlockEdges = append(g.BlockEdges, BlockEdge{From: b.Name, To: target.Name})
		}
	}

	makeGraphEdges(g)
}

// makeGraphEdges runs the two-pass edge finishing step: first record which
// nodes have at least one outgoing successor edge, then mark each input
// edge's source-port index accordingly.
func makeGraphEdges(g *InputGraph) {
	hasSuccessor := make(map[int32]bool, len(g.SuxEdges))
	for _, e := range g.SuxEdges {
		hasSuccessor[e.From] = true
	}
	for i := range g.InputEdges {
		idx := 0
		if hasSuccessor[g.InputEdges[i].From] {
			idx = 1
		}
		g.InputEdges[i].SourceHasSuccessor = idx
	}
}

func blockName(id int32) string {
	return "B" + strconv.FormatInt(int64(id), 10)
}

func (m *ModelBuilder) ResetStreamData(ctx reader.Ctx) (pool.ConstantPool, error) {
	return pool.New(), nil
}

func classRefOf(c pool.NodeClass) NodeClassRef {
	inputs := make([]PortRef, len(c.Inputs))
	for i, p := range c.Inputs {
		inputs[i] = PortRef{IsList: p.IsList, Name: p.Name}
	}
	sux := make([]PortRef, len(c.Sux))
	for i, p := range c.Sux {
		sux[i] = PortRef{IsList: p.IsList, Name: p.Name}
	}
	return NodeClassRef{ClassName: c.ClassName, NameTemplate: c.NameTemplate, InputPorts: inputs, SuxPorts: sux}
}

// poolValue adapts a decoded pool.Entry (other than a plain String, which is
// unwrapped to a Go string directly) into a property value with a
// length-sensitive textual form, for use by the node-name template expander.
type poolValue struct {
	entry pool.Entry
}

func (p poolValue) String() string {
	return p.TextAt("l")
}

func (p poolValue) TextAt(length string) string {
	switch e := p.entry.(type) {
	case pool.Klass:
		if length == "s" || length == "m" {
			return e.SimpleName
		}
		return e.Name
	case pool.EnumKlass:
		return e.Name
	case pool.EnumValue:
		name := e.Klass.Name
		if e.Ordinal >= 0 && int(e.Ordinal) < len(e.Klass.Values) {
			name = e.Klass.Values[e.Ordinal]
		}
		if length == "l" {
			return e.Klass.Name + "." + name
		}
		return name
	case pool.Method:
		if length == "l" {
			return e.Holder.Name + "." + e.Name
		}
		return e.Name
	case pool.Field:
		if length == "l" {
			return e.Holder.Name + "." + e.Name
		}
		return e.Name
	case pool.Signature:
		return signatureText(e)
	case pool.NodeClass:
		return e.ClassName
	default:
		return fmt.Sprintf("%v", p.entry)
	}
}

func signatureText(s pool.Signature) string {
	out := "("
	for i, a := range s.ArgTypes {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out + ")" + s.ReturnType
}
