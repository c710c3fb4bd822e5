// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package model

import "github.com/fau-hpc/bgvtrace/internal/pool"

// FolderElement is implemented by Group and InputGraph: anything a Group can
// contain.
type FolderElement interface {
	ElementName() string
	parentGroup() *Group
}

func (g *Group) ElementName() string      { return g.Name }
func (g *Group) parentGroup() *Group      { return g.Parent }
func (g *InputGraph) ElementName() string { return g.Name }
func (g *InputGraph) parentGroup() *Group { return g.Parent }

// Group is a Folder: it exclusively owns its child FolderElements (graphs
// and nested groups) once loaded.
type Group struct {
	Name       string
	ShortName  string
	Method     *pool.Method
	BCI        int32
	Properties *Properties
	Elements   []FolderElement
	Parent     *Group
}

// NewGroup returns an empty, parentless Group.
func NewGroup(name, shortName string, method *pool.Method, bci int32) *Group {
	return &Group{
		Name:       name,
		ShortName:  shortName,
		Method:     method,
		BCI:        bci,
		Properties: NewProperties(),
	}
}

// AddElement appends child to g's elements and sets child's parent.
func (g *Group) AddElement(child FolderElement) {
	switch c := child.(type) {
	case *Group:
		c.Parent = g
	case *InputGraph:
		c.Parent = g
	}
	g.Elements = append(g.Elements, child)
}

// Graphs returns g's direct child graphs, in order.
func (g *Group) Graphs() []*InputGraph {
	var out []*InputGraph
	for _, e := range g.Elements {
		if gr, ok := e.(*InputGraph); ok {
			out = append(out, gr)
		}
	}
	return out
}

// Groups returns g's direct child groups, in order.
func (g *Group) Groups() []*Group {
	var out []*Group
	for _, e := range g.Elements {
		if sub, ok := e.(*Group); ok {
			out = append(out, sub)
		}
	}
	return out
}
