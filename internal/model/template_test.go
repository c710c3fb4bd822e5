// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandNameTemplate(t *testing.T) {
	props := NewProperties()
	props.Set("foo", "Add")

	edges := []InputEdge{
		{From: 7, To: 1, PortName: "in"},
		{From: 3, To: 1, PortName: "in"},
		{From: 99, To: 1, PortName: "other"},
	}

	got := expandNameTemplate("{p#foo/s} [{i#in}]", props, edges)
	assert.Equal(t, "Add [7, 3]", got)
}

func TestExpandNameTemplateEscapesSubstitution(t *testing.T) {
	props := NewProperties()
	props.Set("raw", `a\b$c`)

	got := expandNameTemplate("{p#raw}", props, nil)
	assert.Equal(t, `a\\b\$c`, got)
}

func TestPortLabelMatchesIndexedSuffixOnly(t *testing.T) {
	assert.True(t, portLabelMatches("in", "in"))
	assert.True(t, portLabelMatches("in[0]", "in"))
	assert.False(t, portLabelMatches("index", "in"))
}
