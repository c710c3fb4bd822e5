// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scan

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/pool"
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

func writePoolRef(buf *bytes.Buffer, index uint16) {
	buf.WriteByte(0x01) // tag = string reference
	writeU16(buf, index)
}

func writeHeader(buf *bytes.Buffer) {
	buf.WriteString("BIGV")
	buf.WriteByte(1)
	buf.WriteByte(0)
}

func beginGroup(buf *bytes.Buffer) { buf.WriteByte(0x00) }
func closeGroup(buf *bytes.Buffer) { buf.WriteByte(0x02) }

func TestScanSingleEmptyGroup(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf)
	beginGroup(&buf)
	writeNewPoolString(&buf, 0, "G")
	buf.WriteByte(0x05) // shortName = POOL_NULL
	buf.WriteByte(0x05) // method = POOL_NULL
	writeU32(&buf, 0)   // bci
	writeU16(&buf, 0)   // properties count
	closeGroup(&buf)

	idx, err := Scan(binsrc.New(&buf))
	require.NoError(t, err)

	top := idx.TopLevel()
	require.Len(t, top, 1)
	e := top[0]
	assert.Equal(t, RecordGroup, e.Type)
	assert.Equal(t, "G", e.Name)
	assert.Less(t, e.Start, e.End)
	assert.Equal(t, 1, idx.Len())
}

func TestScanNestedGroupIndexesBothLevels(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf)

	beginGroup(&buf)
	writeNewPoolString(&buf, 0, "Outer")
	buf.WriteByte(0x05)
	buf.WriteByte(0x05)
	writeU32(&buf, 0)
	writeU16(&buf, 0)

	beginGroup(&buf)
	writeNewPoolString(&buf, 1, "Inner")
	buf.WriteByte(0x05)
	buf.WriteByte(0x05)
	writeU32(&buf, 0)
	writeU16(&buf, 0)
	closeGroup(&buf) // Inner
	closeGroup(&buf) // Outer

	idx, err := Scan(binsrc.New(&buf))
	require.NoError(t, err)

	require.Equal(t, 2, idx.Len())
	top := idx.TopLevel()
	require.Len(t, top, 1)
	outer := top[0]
	assert.Equal(t, "Outer", outer.Name)
	require.Len(t, outer.Children, 1)
	inner := outer.Children[0]
	assert.Equal(t, "Inner", inner.Name)
	assert.Same(t, outer, inner.Parent)
	assert.Equal(t, 1, inner.Depth())
	assert.Equal(t, 0, outer.Depth())
}

func TestScanDuplicateGraphDetection(t *testing.T) {
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

	idx16 := uint16(0)
	writeGraph("A", &idx16)
	writeGraph("A", &idx16)

	idx, err := Scan(binsrc.New(&buf))
	require.NoError(t, err)

	top := idx.TopLevel()
	require.Len(t, top, 2)
	assert.False(t, top[0].GraphMeta.IsDuplicate)
	assert.True(t, top[1].GraphMeta.IsDuplicate)
}

// TestScanForkPreservesInitialPoolAcrossOverwrite exercises the
// copy-on-overwrite fork end to end: a group's name pool entry at index 0
// is read (via a shortName reference) and then overwritten by a nested
// group reusing the same index. The outer group's InitialPool must still
// resolve "Outer" after the overwrite; the inner group's InitialPool must
// resolve "Inner".
func TestScanForkPreservesInitialPoolAcrossOverwrite(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf)

	beginGroup(&buf)
	writeNewPoolString(&buf, 0, "Outer")
	writePoolRef(&buf, 0) // shortName references index 0, marking it read
	buf.WriteByte(0x05)   // method = POOL_NULL
	writeU32(&buf, 0)
	writeU16(&buf, 0)

	beginGroup(&buf)
	writeNewPoolString(&buf, 0, "Inner") // overwrites index 0 after it was read
	buf.WriteByte(0x05)
	buf.WriteByte(0x05)
	writeU32(&buf, 0)
	writeU16(&buf, 0)
	closeGroup(&buf) // Inner
	closeGroup(&buf) // Outer

	idx, err := Scan(binsrc.New(&buf))
	require.NoError(t, err)

	outer := idx.TopLevel()[0]
	inner := outer.Children[0]

	outerName, err := outer.InitialPool.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Outer", string(outerName.(pool.String)))

	innerName, err := inner.InitialPool.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Inner", string(innerName.(pool.String)))
}
