// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package model

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/pool"
	"github.com/fau-hpc/bgvtrace/internal/reader"
)

func writeU16(buf *bytes.Buffer, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	buf.Write(b)
}

func writeU32(buf *bytes.Buffer, v int32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, int32(len(s)))
	buf.WriteString(s)
}

func writeNewPoolString(buf *bytes.Buffer, index uint16, s string) {
	buf.WriteByte(0x00) // POOL_NEW
	writeU16(buf, index)
	buf.WriteByte(0x01) // type = string
	writeString(buf, s)
}

func writeHeader(buf *bytes.Buffer) {
	buf.WriteString("BIGV")
	buf.WriteByte(1)
	buf.WriteByte(0)
}

// buildEmptyGroup appends a single BEGIN_GROUP("G")/CLOSE_GROUP pair using
// pool index base for the group's name.
func buildEmptyGroup(buf *bytes.Buffer, name string, poolIndex uint16) {
	buf.WriteByte(0x00) // BEGIN_GROUP
	writeNewPoolString(buf, poolIndex, name)
	buf.WriteByte(0x05) // shortName = POOL_NULL
	buf.WriteByte(0x05) // method = POOL_NULL
	writeU32(buf, 0)    // bci
	writeU16(buf, 0)    // properties count
	buf.WriteByte(0x02) // CLOSE_GROUP
}

func TestModelBuilderSingleEmptyGroup(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf)
	buildEmptyGroup(&buf, "G", 0)

	src := binsrc.New(&buf)
	br := reader.New(src, pool.New())
	mb := NewModelBuilder(false)

	require.NoError(t, br.Parse(mb))

	groups := mb.Root.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "G", groups[0].Name)
	assert.Empty(t, groups[0].Elements)
}

func TestModelBuilderConcatenatedStreamsDoNotLeakPool(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf)
	buildEmptyGroup(&buf, "G1", 0)
	writeHeader(&buf)
	buildEmptyGroup(&buf, "G2", 0) // reuses index 0 in a fresh pool

	src := binsrc.New(&buf)
	br := reader.New(src, pool.New())
	mb := NewModelBuilder(false)

	require.NoError(t, br.Parse(mb))

	groups := mb.Root.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "G1", groups[0].Name)
	assert.Equal(t, "G2", groups[1].Name)
}

func TestModelBuilderDuplicateGraphDetection(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf)

	writeGraph := func(title string, poolIdx *uint16) {
		buf.WriteByte(0x01) // BEGIN_GRAPH
		writeNewPoolString(&buf, *poolIdx, title)
		*poolIdx++
		writeU16(&buf, 0) // properties count
		writeU32(&buf, 0) // nodes count
		writeU32(&buf, 0) // blocks count
	}

	idx := uint16(0)
	writeGraph("A", &idx)
	writeGraph("A", &idx)

	src := binsrc.New(&buf)
	br := reader.New(src, pool.New())
	mb := NewModelBuilder(false)

	require.NoError(t, br.Parse(mb))

	graphs := []*InputGraph{}
	for _, e := range mb.Root.Elements {
		if g, ok := e.(*InputGraph); ok {
			graphs = append(graphs, g)
		}
	}
	require.Len(t, graphs, 2)
	assert.False(t, graphs[0].IsDuplicate)
	assert.True(t, graphs[1].IsDuplicate)
}
