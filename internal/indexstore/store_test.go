// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package indexstore

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fau-hpc/bgvtrace/internal/binsrc"
	"github.com/fau-hpc/bgvtrace/internal/scan"
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
	buf.WriteByte(0x00)
	writeU16(buf, index)
	buf.WriteByte(0x01)
	writeString(buf, s)
}

func buildIndex(t *testing.T) *scan.StreamIndex {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("BIGV")
	buf.WriteByte(1)
	buf.WriteByte(0)

	buf.WriteByte(0x00) // BEGIN_GROUP
	writeNewPoolString(&buf, 0, "Outer")
	buf.WriteByte(0x05) // shortName = POOL_NULL
	buf.WriteByte(0x05) // method = POOL_NULL
	writeU32(&buf, 0)   // bci
	writeU16(&buf, 0)   // properties count

	buf.WriteByte(0x01) // BEGIN_GRAPH
	writeNewPoolString(&buf, 1, "G1")
	writeU16(&buf, 0) // properties
	writeU32(&buf, 0) // nodes
	writeU32(&buf, 0) // blocks

	buf.WriteByte(0x02) // CLOSE_GROUP

	idx, err := scan.Scan(binsrc.New(&buf))
	require.NoError(t, err)
	return idx
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "index.db")
	s, err := Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndTopLevel(t *testing.T) {
	s := openTestStore(t)
	idx := buildIndex(t)

	require.NoError(t, s.Save("dump.bgv", idx))

	top, err := s.TopLevel("dump.bgv")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Outer", top[0].Name)
	assert.Equal(t, "group", top[0].Type)
	assert.Nil(t, top[0].ParentID)
}

func TestSaveAndChildren(t *testing.T) {
	s := openTestStore(t)
	idx := buildIndex(t)
	require.NoError(t, s.Save("dump.bgv", idx))

	top, err := s.TopLevel("dump.bgv")
	require.NoError(t, err)
	require.Len(t, top, 1)

	children, err := s.Children(top[0].ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "graph", children[0].Type)
	assert.Equal(t, "G1", children[0].Name)
}

func TestSaveReplacesPriorCatalogForSameDump(t *testing.T) {
	s := openTestStore(t)
	idx := buildIndex(t)

	require.NoError(t, s.Save("dump.bgv", idx))
	require.NoError(t, s.Save("dump.bgv", idx))

	top, err := s.TopLevel("dump.bgv")
	require.NoError(t, err)
	assert.Len(t, top, 1, "Save should replace, not append, a dump's prior catalog")
}

func TestByOffset(t *testing.T) {
	s := openTestStore(t)
	idx := buildIndex(t)
	require.NoError(t, s.Save("dump.bgv", idx))

	top := idx.TopLevel()[0]
	row, err := s.ByOffset("dump.bgv", top.Start)
	require.NoError(t, err)
	assert.Equal(t, "Outer", row.Name)
}
