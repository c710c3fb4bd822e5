// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// The references "{p#NAME}", "{p#NAME/l}", "{p#NAME/m}", "{p#NAME/s}"
// and "{i#NAME}" are matched by hand: the grammar is small enough that a regexp buys
// nothing a single scan doesn't already give us, and it lets us walk the
// string once while building the result.
//
// expandNameTemplate substitutes every reference in template against props
// (property lookups) and inputEdges (for "{i#NAME}" input-id gathering),
// escaping literal '\' and '$' in substituted values so they cannot be
// mistaken for further template syntax.
func expandNameTemplate(template string, props *Properties, inputEdges []InputEdge) string {
	var out strings.Builder
	i := 0
	for i < len(template) {
		if template[i] != '{' {
			out.WriteByte(template[i])
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			out.WriteString(template[i:])
			break
		}
		end += i
		ref := template[i+1 : end]
		out.WriteString(expandRef(ref, props, inputEdges))
		i = end + 1
	}
	return out.String()
}

func expandRef(ref string, props *Properties, inputEdges []InputEdge) string {
	if strings.HasPrefix(ref, "p#") {
		return escapeSubst(expandPropertyRef(ref[2:], props))
	}
	if strings.HasPrefix(ref, "i#") {
		return escapeSubst(expandInputRef(ref[2:], inputEdges))
	}
	// Unrecognized reference syntax: pass through literally, braces and all.
	return "{" + ref + "}"
}

// expandPropertyRef resolves "NAME", "NAME/l", "NAME/m", or "NAME/s" against
// props. The length modifier selects a length-sensitive textual form when
// the stored value supports one (see Lengthy); otherwise it is ignored and
// the plain textual form is used.
func expandPropertyRef(ref string, props *Properties) string {
	name, length := ref, ""
	if idx := strings.LastIndexByte(ref, '/'); idx >= 0 && isLengthModifier(ref[idx+1:]) {
		name, length = ref[:idx], ref[idx+1:]
	}
	v, ok := props.Get(name)
	if !ok {
		return ""
	}
	if l, ok := v.(Lengthy); ok && length != "" {
		return l.TextAt(length)
	}
	return textOf(v)
}

func isLengthModifier(s string) bool {
	return s == "l" || s == "m" || s == "s"
}

// Lengthy is implemented by property values that can render themselves at a
// requested length ("l"ong, "m"edium, "s"hort) for use inside a node-name
// template.
type Lengthy interface {
	TextAt(length string) string
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// expandInputRef gathers the From ids of every input edge whose port label
// starts with name (but is not itself a longer, unrelated label -- "in" must
// not match "index"), comma-joined in edge order.
func expandInputRef(name string, inputEdges []InputEdge) string {
	var ids []string
	for _, e := range inputEdges {
		if portLabelMatches(e.PortName, name) {
			ids = append(ids, strconv.FormatInt(int64(e.From), 10))
		}
	}
	return strings.Join(ids, ", ")
}

// portLabelMatches reports whether label is exactly name, or name followed
// immediately by an index bracket such as "[0]".
func portLabelMatches(label, name string) bool {
	if label == name {
		return true
	}
	if !strings.HasPrefix(label, name) {
		return false
	}
	rest := label[len(name):]
	return strings.HasPrefix(rest, "[")
}

func escapeSubst(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			out.WriteString(`\\`)
		case '$':
			out.WriteString(`\$`)
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String()
}
